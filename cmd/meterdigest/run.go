package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deusflow/MeterNews/internal/app"
	"github.com/deusflow/MeterNews/internal/config"
	"github.com/deusflow/MeterNews/internal/logger"
	"github.com/deusflow/MeterNews/internal/metrics"
)

func newRunCmd() *cobra.Command {
	var serve bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, deduplicate and deliver one digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Init(cfg.Debug)

			ctx := cmd.Context()
			if serve || cfg.EnableHTTPMonitoring {
				go app.StartMonitoring(ctx, cfg.MonitoringPort, metrics.Global)
			}

			report, err := app.Run(ctx, cfg)
			if report.RunID != "" {
				report.Print(os.Stdout)
			}
			if err != nil {
				return err
			}

			if serve {
				logger.Info("Run finished, monitoring stays up until interrupted")
				<-ctx.Done()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&serve, "serve", false, "serve /health and /metrics and keep running after the digest is sent")
	return cmd
}
