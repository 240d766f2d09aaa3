package rss

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/MeterNews/internal/logger"
	"github.com/deusflow/MeterNews/internal/news"
)

const (
	GoogleNewsBaseURL = "https://news.google.com/rss/search"
	GoogleNewsName    = "Google News"
	FeedsName         = "RSS"

	maxParallelFeeds = 4
)

// Fetcher reads a fixed list of RSS/Atom URLs and maps their items to articles.
type Fetcher struct {
	name   string
	urls   []string
	parser *gofeed.Parser
}

// NewFeeds returns a fetcher over plain feed URLs, such as those listed in the
// queries file.
func NewFeeds(urls []string, client *http.Client) *Fetcher {
	return newFetcher(FeedsName, urls, client)
}

// NewGoogleNews searches Google News RSS for every query in the first
// regionsPerQuery regions.
func NewGoogleNews(baseURL string, queries, regions []string, regionsPerQuery int, client *http.Client) *Fetcher {
	if baseURL == "" {
		baseURL = GoogleNewsBaseURL
	}
	if regionsPerQuery > 0 && regionsPerQuery < len(regions) {
		regions = regions[:regionsPerQuery]
	}
	var urls []string
	for _, q := range queries {
		for _, r := range regions {
			urls = append(urls, GoogleNewsSearchURL(baseURL, q, r))
		}
	}
	return newFetcher(GoogleNewsName, urls, client)
}

func newFetcher(name string, urls []string, client *http.Client) *Fetcher {
	p := gofeed.NewParser()
	if client != nil {
		p.Client = client
	}
	p.UserAgent = "MeterNews/1.0"
	return &Fetcher{name: name, urls: urls, parser: p}
}

// GoogleNewsSearchURL builds an English-language search feed URL for a region.
func GoogleNewsSearchURL(baseURL, query, region string) string {
	cc := strings.ToUpper(region)
	v := url.Values{}
	v.Set("q", query)
	v.Set("hl", "en-"+cc)
	v.Set("gl", cc)
	v.Set("ceid", cc+":en")
	return baseURL + "?" + v.Encode()
}

func (f *Fetcher) Name() string { return f.name }

// URLs lists the feeds this fetcher reads.
func (f *Fetcher) URLs() []string { return f.urls }

// Fetch downloads all feeds in parallel. A broken feed is logged and skipped;
// items older than since are dropped. Output follows feed order.
func (f *Fetcher) Fetch(ctx context.Context, since time.Time) ([]news.Article, error) {
	results := make([][]news.Article, len(f.urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFeeds)
	for i, u := range f.urls {
		i, u := i, u
		g.Go(func() error {
			feed, err := f.parser.ParseURLWithContext(u, gctx)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("Error parsing RSS", "url", u, "error", err)
				return nil
			}
			results[i] = f.items(feed, since)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", f.name, err)
	}

	var out []news.Article
	seen := make(map[string]bool)
	ok := 0
	for _, batch := range results {
		if batch != nil {
			ok++
		}
		for _, a := range batch {
			if seen[a.URL] {
				continue
			}
			seen[a.URL] = true
			out = append(out, a)
		}
	}
	logger.Info("Processed feeds", "provider", f.name, "with_items", ok, "feeds", len(f.urls), "count", len(out))
	return out, nil
}

func (f *Fetcher) items(feed *gofeed.Feed, since time.Time) []news.Article {
	out := make([]news.Article, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		title := strings.TrimSpace(it.Title)
		link := strings.TrimSpace(it.Link)
		if title == "" || link == "" {
			continue
		}

		published := it.PublishedParsed
		if published == nil {
			published = it.UpdatedParsed
		}
		if published != nil && published.Before(since) {
			continue
		}

		source := strings.TrimSpace(feed.Title)
		if f.name == GoogleNewsName {
			source = outletFromTitle(title)
		}

		out = append(out, news.Article{
			URL:         link,
			Title:       title,
			Source:      source,
			Provider:    f.name,
			PublishedAt: published,
			Summary:     plainText(it.Description),
			Body:        plainText(it.Content),
		})
	}
	return out
}

// outletFromTitle reads the " - Outlet" suffix Google News appends to headlines.
func outletFromTitle(title string) string {
	i := strings.LastIndex(title, " - ")
	if i <= 0 {
		return "Unknown"
	}
	if s := strings.TrimSpace(title[i+3:]); s != "" {
		return s
	}
	return "Unknown"
}

// plainText strips markup from feed descriptions.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
