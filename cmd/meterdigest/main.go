package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "meterdigest",
		Short: "Daily digest of electricity metering news",
		Long: `meterdigest collects electricity meter and smart grid news for the
Middle East and Africa, merges duplicate reports of the same story and
delivers one digest over WhatsApp, Telegram or stdout.

Examples:
  # Fetch, deduplicate and deliver today's digest
  meterdigest run

  # Same, keeping /health and /metrics up while running
  meterdigest run --serve

  # Group a saved batch of articles offline
  meterdigest dedup --input batch.json --output groups.json`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDedupCmd())
	return rootCmd
}
