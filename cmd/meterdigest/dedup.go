package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/deusflow/MeterNews/internal/dedup"
	"github.com/deusflow/MeterNews/internal/news"
	"github.com/deusflow/MeterNews/internal/storage"
)

type groupOutput struct {
	Representative news.Article   `json:"representative"`
	Members        []news.Article `json:"members"`
	Indices        []int          `json:"indices"`
	Seen           bool           `json:"seen,omitempty"`
}

type dedupOutput struct {
	Stats  dedup.Stats   `json:"stats"`
	Groups []groupOutput `json:"groups"`
}

func newDedupCmd() *cobra.Command {
	var (
		input, output, seenFile string
		seenTTL                 time.Duration
		opts                    = dedup.DefaultOptions()
	)

	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Group a JSON batch of articles into distinct stories",
		Long: `Reads a JSON array of articles (url, title, source, provider,
published_at, summary, body) and writes the duplicate groups as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			articles, err := readArticles(input)
			if err != nil {
				return err
			}

			var extra []dedup.EngineOption
			if seenFile != "" {
				store := storage.NewFileStore(seenFile, seenTTL)
				if err := store.Load(); err != nil {
					return err
				}
				extra = append(extra, dedup.WithPrior(store))
			}

			engine, err := dedup.NewEngine(opts, extra...)
			if err != nil {
				return err
			}
			groups, err := engine.Dedupe(cmd.Context(), articles)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}
			return writeGroups(out, groups)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON file with an array of articles ('-' for stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "where to write the groups (default stdout)")
	cmd.Flags().StringVar(&seenFile, "seen-file", "", "mark groups already recorded in this seen-story file")
	cmd.Flags().DurationVar(&seenTTL, "seen-ttl", 72*time.Hour, "retention window of --seen-file")
	cmd.Flags().Float64Var(&opts.HighThreshold, "high", opts.HighThreshold, "title score at or above which articles are duplicates")
	cmd.Flags().Float64Var(&opts.LowThreshold, "low", opts.LowThreshold, "title score from which a matching body hash makes a duplicate")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "parallel workers (0 = GOMAXPROCS)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func readArticles(path string) ([]news.Article, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var articles []news.Article
	if err := json.NewDecoder(r).Decode(&articles); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	return articles, nil
}

func writeGroups(w io.Writer, groups []dedup.DuplicateGroup) error {
	out := dedupOutput{
		Stats:  dedup.Summarize(groups),
		Groups: make([]groupOutput, 0, len(groups)),
	}
	for _, g := range groups {
		out.Groups = append(out.Groups, groupOutput{
			Representative: g.Representative,
			Members:        g.Members,
			Indices:        g.Indices,
			Seen:           g.Seen,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
