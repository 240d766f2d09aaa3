package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/deusflow/MeterNews/internal/analysis"
	"github.com/deusflow/MeterNews/internal/chatgpt"
	"github.com/deusflow/MeterNews/internal/config"
	"github.com/deusflow/MeterNews/internal/delivery"
	"github.com/deusflow/MeterNews/internal/gemini"
	"github.com/deusflow/MeterNews/internal/logger"
	"github.com/deusflow/MeterNews/internal/newsapi"
	"github.com/deusflow/MeterNews/internal/ratelimit"
	"github.com/deusflow/MeterNews/internal/retry"
	"github.com/deusflow/MeterNews/internal/rss"
	"github.com/deusflow/MeterNews/internal/scraper"
	"github.com/deusflow/MeterNews/internal/telegram"
	"github.com/deusflow/MeterNews/internal/whatsapp"
)

// New builds a pipeline from configuration. The returned cleanup closes the
// seen store and the AI clients.
func New(ctx context.Context, cfg *config.Config) (*Pipeline, func(), error) {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	rc := retry.RetryConfig{MaxAttempts: cfg.RetryAttempts, Delay: cfg.RetryDelay, Backoff: true}
	q := cfg.Queries
	if q == nil {
		q = config.DefaultQueries()
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	gpt := chatgpt.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, "", q.Countries)

	fetchers := []Fetcher{
		newsapi.NewClient(cfg.NewsAPIKey, q.NewsAPI,
			newsapi.WithHTTPClient(httpClient), newsapi.WithRetry(rc)),
		rss.NewGoogleNews("", q.GoogleNews.Queries, q.GoogleNews.Regions, q.GoogleNews.RegionsPerQuery, httpClient),
	}
	if len(q.Feeds) > 0 {
		fetchers = append(fetchers, rss.NewFeeds(q.Feeds, httpClient))
	}
	if gpt.Enabled() {
		fetchers = append(fetchers, gpt)
	} else {
		logger.Warn("OPENAI_API_KEY not set, ChatGPT discovery disabled")
	}
	if cfg.NewsAPIKey == "" {
		logger.Warn("NEWSAPI_KEY not set, NewsAPI disabled")
	}

	var models []analysis.Model
	if cfg.GeminiAPIKey != "" {
		gc, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("Gemini unavailable", "error", err)
		} else {
			closers = append(closers, gc.Close)
			models = append(models, gc)
		}
	}
	if gpt.Enabled() {
		models = append(models, gpt.Commentary())
	}
	budget := ratelimit.NewAIBudget(cfg.MaxGeminiRequests, cfg.MaxOpenAIRequests, cfg.MaxAIRequests)

	sender, err := newSender(cfg, httpClient, rc)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if store != nil {
		closers = append(closers, func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close seen store", "error", err)
			}
		})
	}

	p := &Pipeline{
		Fetchers:          fetchers,
		Dedup:             cfg.DedupOptions(),
		Store:             store,
		Scraper:           scraper.New(httpClient),
		Analysis:          analysis.NewService(budget, models...),
		Sender:            sender,
		DaysBack:          cfg.DaysBack,
		MaxItems:          cfg.MaxDigestItems,
		ScrapeMax:         cfg.ScrapeMaxArticles,
		ScrapeConcurrency: cfg.ScrapeConcurrency,
	}
	return p, cleanup, nil
}

func newSender(cfg *config.Config, client *http.Client, rc retry.RetryConfig) (Sender, error) {
	switch cfg.Delivery {
	case config.DeliveryWhatsApp:
		return whatsapp.NewSender(whatsapp.Config{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioWhatsAppNumber,
			Recipients: cfg.WhatsAppRecipients,
			MaxChars:   cfg.WhatsAppMaxChars,
		}, client, rc), nil
	case config.DeliveryTelegram:
		return telegram.NewSender(cfg.TelegramToken, cfg.TelegramChatID, "", client, rc), nil
	case config.DeliveryStdout:
		return delivery.Writer{Out: os.Stdout}, nil
	default:
		return nil, fmt.Errorf("unknown delivery channel %q", cfg.Delivery)
	}
}

// Run builds a pipeline from cfg and executes one digest run.
func Run(ctx context.Context, cfg *config.Config) (Report, error) {
	p, cleanup, err := New(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	defer cleanup()
	return p.Run(ctx)
}
