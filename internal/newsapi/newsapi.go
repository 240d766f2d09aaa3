// Package newsapi fetches metering news from the NewsAPI.org "everything"
// endpoint.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/MeterNews/internal/logger"
	"github.com/deusflow/MeterNews/internal/news"
	"github.com/deusflow/MeterNews/internal/retry"
)

const (
	DefaultBaseURL = "https://newsapi.org/v2/everything"
	ProviderName   = "NewsAPI"
	pageSize       = 20
)

var (
	ErrUnauthorized = errors.New("newsapi: authentication failed")
	ErrRateLimited  = errors.New("newsapi: rate limit reached")
)

type Client struct {
	apiKey  string
	baseURL string
	queries []string
	http    *http.Client
	retry   retry.RetryConfig
	now     func() time.Time
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithRetry(cfg retry.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

func NewClient(apiKey string, queries []string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		queries: queries,
		http:    &http.Client{Timeout: 10 * time.Second},
		retry:   retry.RetryConfig{MaxAttempts: 2, Delay: time.Second},
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Name() string { return ProviderName }

type response struct {
	Status   string       `json:"status"`
	Articles []apiArticle `json:"articles"`
	Message  string       `json:"message"`
}

type apiArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

// Fetch runs every configured query for articles published since the given
// time. An auth failure or rate limit stops the remaining queries; what was
// collected so far is returned together with the error.
func (c *Client) Fetch(ctx context.Context, since time.Time) ([]news.Article, error) {
	if c.apiKey == "" {
		logger.Debug("NEWSAPI_KEY not set, skipping NewsAPI")
		return nil, nil
	}

	var out []news.Article
	seen := make(map[string]bool)

	for _, q := range c.queries {
		var items []apiArticle
		err := retry.WithRetry(ctx, c.retry, func() error {
			var err error
			items, err = c.search(ctx, q, since)
			return err
		})
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrRateLimited) {
			return out, err
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if err != nil {
			logger.Warn("NewsAPI query failed", "query", q, "error", err)
			continue
		}

		for _, it := range items {
			u := strings.TrimSpace(it.URL)
			if u == "" || seen[u] {
				continue
			}
			a, ok := standardize(it)
			if !ok {
				continue
			}
			seen[u] = true
			out = append(out, a)
		}
	}
	return out, nil
}

func (c *Client) search(ctx context.Context, query string, since time.Time) ([]apiArticle, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("from", since.Format("2006-01-02"))
	params.Set("to", c.now().Format("2006-01-02"))
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", fmt.Sprint(pageSize))
	params.Set("apiKey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, retry.Permanent(ErrUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, retry.Permanent(ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("newsapi: status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, retry.Permanent(fmt.Errorf("newsapi: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return r.Articles, nil
}

func standardize(it apiArticle) (news.Article, bool) {
	title := strings.TrimSpace(it.Title)
	if title == "" || title == "[Removed]" {
		return news.Article{}, false
	}
	source := strings.TrimSpace(it.Source.Name)
	if source == "" {
		source = "Unknown"
	}
	a := news.Article{
		URL:      strings.TrimSpace(it.URL),
		Title:    title,
		Source:   source,
		Provider: ProviderName,
		Summary:  strings.TrimSpace(it.Description),
		Body:     it.Content,
	}
	if t, err := time.Parse(time.RFC3339, it.PublishedAt); err == nil {
		a.PublishedAt = &t
	}
	return a, true
}
