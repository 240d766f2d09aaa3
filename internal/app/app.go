// Package app runs the digest pipeline: fetch, filter, deduplicate, comment,
// format and deliver.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/MeterNews/internal/dedup"
	"github.com/deusflow/MeterNews/internal/delivery"
	"github.com/deusflow/MeterNews/internal/digest"
	"github.com/deusflow/MeterNews/internal/logger"
	"github.com/deusflow/MeterNews/internal/metrics"
	"github.com/deusflow/MeterNews/internal/news"
)

// Fetcher is a news provider.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, since time.Time) ([]news.Article, error)
}

// Sender delivers a formatted digest.
type Sender interface {
	Send(ctx context.Context, message string) (delivery.Result, error)
}

// Commentator writes the optional notes under the digest.
type Commentator interface {
	Analyze(ctx context.Context, articles []news.Article) string
}

// Summarizer fills in missing article summaries.
type Summarizer interface {
	FillSummaries(ctx context.Context, articles []news.Article, max, concurrency int) []news.Article
}

// previewRunes bounds the digest preview written to the log.
const previewRunes = 2000

// Pipeline holds the collaborators of one digest run. Store, Scraper and
// Analysis are optional.
type Pipeline struct {
	Fetchers []Fetcher
	Dedup    dedup.Options
	Store    SeenStore
	Scraper  Summarizer
	Analysis Commentator
	Sender   Sender

	DaysBack          int
	MaxItems          int
	ScrapeMax         int
	ScrapeConcurrency int

	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Report is the outcome of one run.
type Report struct {
	RunID             string            `json:"run_id"`
	Timestamp         time.Time         `json:"timestamp"`
	TotalFetched      int               `json:"total_fetched"`
	Relevant          int               `json:"relevant"`
	UniqueArticles    int               `json:"unique_articles"`
	DuplicatesRemoved int               `json:"duplicates_removed"`
	SeenBefore        int               `json:"seen_before"`
	Included          int               `json:"included"`
	Sources           map[string]int    `json:"sources"`
	FetchErrors       map[string]string `json:"fetch_errors,omitempty"`
	Dedup             dedup.Stats       `json:"dedup"`
	HasAnalysis       bool              `json:"has_analysis"`
	MessageLength     int               `json:"message_length"`
	Send              delivery.Result   `json:"send_results"`
}

// Print writes the report in a human readable form.
func (r Report) Print(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w, "Final Report:")
	fmt.Fprintf(w, "   run_id: %s\n", r.RunID)
	fmt.Fprintf(w, "   timestamp: %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "   total_fetched: %d\n", r.TotalFetched)
	fmt.Fprintf(w, "   relevant: %d\n", r.Relevant)
	fmt.Fprintf(w, "   unique_articles: %d\n", r.UniqueArticles)
	fmt.Fprintf(w, "   duplicates_removed: %d\n", r.DuplicatesRemoved)
	fmt.Fprintf(w, "   seen_before: %d\n", r.SeenBefore)
	fmt.Fprintf(w, "   included: %d\n", r.Included)

	names := make([]string, 0, len(r.Sources))
	for name := range r.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, r.Sources[name]))
	}
	fmt.Fprintf(w, "   sources: %s\n", strings.Join(parts, ", "))
	fmt.Fprintf(w, "   send_results: status=%s sent=%d failed=%d", r.Send.Status, r.Send.Sent, r.Send.Failed)
	if r.Send.Reason != "" {
		fmt.Fprintf(w, " reason=%q", r.Send.Reason)
	}
	fmt.Fprintln(w)
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) metrics() *metrics.Metrics {
	if p.Metrics != nil {
		return p.Metrics
	}
	return metrics.Global
}

// Run executes one digest run. Provider, scraping and commentary failures
// are logged and tolerated; errors are returned for bad dedup settings,
// cancellation and delivery failures.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	m := p.metrics()
	start := time.Now()
	now := p.now()

	report := Report{
		RunID:     m.StartRun(),
		Timestamp: now,
		Sources:   make(map[string]int),
	}
	log := logger.With("run_id", report.RunID)
	log.Info("Starting news aggregation", "providers", len(p.Fetchers), "days_back", p.DaysBack)

	fail := func(err error) (Report, error) {
		m.SetError(err.Error())
		m.RecordProcessingTime(time.Since(start))
		return report, err
	}
	if p.Sender == nil {
		return fail(errors.New("no sender configured"))
	}

	since := now.AddDate(0, 0, -max(p.DaysBack, 1))
	all, fetchErrs := p.fetchAll(ctx, since)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	report.TotalFetched = len(all)
	report.FetchErrors = fetchErrs
	m.AddFetched(len(all))
	log.Info("Total articles before deduplication", "count", len(all))

	relevant := news.FilterRelevant(all)
	report.Relevant = len(relevant)
	m.AddIrrelevant(len(all) - len(relevant))

	var opts []dedup.EngineOption
	if p.Store != nil {
		opts = append(opts, dedup.WithPrior(p.Store))
	}
	engine, err := dedup.NewEngine(p.Dedup, opts...)
	if err != nil {
		return fail(err)
	}
	groups, err := engine.Dedupe(ctx, relevant)
	if err != nil {
		return fail(fmt.Errorf("dedup: %w", err))
	}

	stats := dedup.Summarize(groups)
	report.Dedup = stats
	report.UniqueArticles = stats.Groups
	report.DuplicatesRemoved = stats.Duplicates
	report.SeenBefore = stats.Seen
	m.AddDuplicatesRemoved(stats.Duplicates)
	m.AddSeenBefore(stats.Seen)
	log.Info("Deduplicated articles",
		"unique", stats.Groups, "duplicates_removed", stats.Duplicates,
		"merged_groups", stats.Merged, "seen_before", stats.Seen)

	fresh := selectFresh(groups, p.MaxItems)
	articles := dedup.Representatives(fresh)
	report.Included = len(articles)
	for _, a := range articles {
		report.Sources[a.Provider]++
	}

	if p.Scraper != nil && p.ScrapeMax > 0 {
		articles = p.Scraper.FillSummaries(ctx, articles, p.ScrapeMax, p.ScrapeConcurrency)
	}

	var analysis string
	if p.Analysis != nil && len(articles) > 0 {
		analysis = p.Analysis.Analyze(ctx, articles)
	}
	report.HasAnalysis = analysis != ""

	message := digest.Format(articles, analysis, now)
	report.MessageLength = utf8.RuneCountInString(message)
	log.Debug("Message preview", "text", preview(message, previewRunes))
	log.Info("Formatted message", "chars", report.MessageLength, "items", len(articles))

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	res, sendErr := p.Sender.Send(ctx, message)
	report.Send = res
	m.AddMessages(res.Sent, res.Failed)
	switch {
	case errors.Is(sendErr, delivery.ErrNotConfigured):
		log.Warn("Delivery skipped", "reason", res.Reason)
	case sendErr != nil:
		return fail(fmt.Errorf("send digest: %w", sendErr))
	}

	if res.Delivered() {
		m.AddDelivered(len(articles))
		if p.Store != nil && len(fresh) > 0 {
			if err := p.Store.Remember(ctx, report.RunID, fresh); err != nil {
				log.Warn("Failed to remember delivered stories", "error", err)
			}
		}
	}

	m.RecordProcessingTime(time.Since(start))
	m.SetLastRun()
	log.Info("Process completed", "status", res.Status, "sent", res.Sent, "failed", res.Failed)
	return report, nil
}

// fetchAll queries every provider concurrently. Results keep provider order.
func (p *Pipeline) fetchAll(ctx context.Context, since time.Time) ([]news.Article, map[string]string) {
	results := make([][]news.Article, len(p.Fetchers))
	errs := make([]error, len(p.Fetchers))

	var g errgroup.Group
	for i, f := range p.Fetchers {
		i, f := i, f
		g.Go(func() error {
			items, err := f.Fetch(ctx, since)
			results[i], errs[i] = items, err
			return nil
		})
	}
	_ = g.Wait()

	var all []news.Article
	var failed map[string]string
	for i, f := range p.Fetchers {
		if errs[i] != nil {
			logger.Error("Provider failed", "provider", f.Name(), "error", errs[i], "partial", len(results[i]))
			if failed == nil {
				failed = make(map[string]string)
			}
			failed[f.Name()] = errs[i].Error()
		} else {
			logger.Info("Provider fetched", "provider", f.Name(), "count", len(results[i]))
		}
		all = append(all, results[i]...)
	}
	return all, failed
}

// selectFresh drops groups delivered by an earlier run, orders the rest
// newest first and keeps at most max of them.
func selectFresh(groups []dedup.DuplicateGroup, max int) []dedup.DuplicateGroup {
	fresh := make([]dedup.DuplicateGroup, 0, len(groups))
	for _, g := range groups {
		if !g.Seen {
			fresh = append(fresh, g)
		}
	}
	sort.SliceStable(fresh, func(i, j int) bool {
		return digest.Newer(fresh[i].Representative, fresh[j].Representative)
	})
	if max > 0 && len(fresh) > max {
		fresh = fresh[:max]
	}
	return fresh
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
