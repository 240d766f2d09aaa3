// Package scraper fetches article pages to fill in summaries that the news
// providers left empty.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/MeterNews/internal/logger"
	"github.com/deusflow/MeterNews/internal/news"
)

// MaxSummaryRunes bounds a scraped summary.
const MaxSummaryRunes = 400

// ArticleContent is the text pulled from an article page.
type ArticleContent struct {
	Title       string
	Description string
	Content     string
	URL         string
}

// Summary prefers the page's own description over body paragraphs.
func (c ArticleContent) Summary() string {
	if c.Description != "" {
		return truncate(c.Description, MaxSummaryRunes)
	}
	return truncate(firstParagraphs(c.Content, 2), MaxSummaryRunes)
}

type Scraper struct {
	client *http.Client
}

func New(client *http.Client) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Scraper{client: client}
}

// ExtractFullArticle gets the text of an article by URL.
func (s *Scraper) ExtractFullArticle(ctx context.Context, url string) (*ArticleContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; MeterNews/1.0)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	content := &ArticleContent{
		Title:       extractTitle(doc),
		Description: extractDescription(doc),
		Content:     cleanContent(extractParagraphs(doc)),
		URL:         url,
	}
	if content.Description == "" && content.Content == "" {
		return nil, fmt.Errorf("can't get content")
	}
	return content, nil
}

// FillSummaries scrapes up to max articles that carry no text and sets their
// Summary. Failures are logged and leave the article untouched.
func (s *Scraper) FillSummaries(ctx context.Context, articles []news.Article, max, concurrency int) []news.Article {
	out := append([]news.Article(nil), articles...)
	if max <= 0 {
		return out
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var targets []int
	for i, a := range out {
		if len(targets) >= max {
			break
		}
		if !a.HasText() && a.URL != "" {
			targets = append(targets, i)
		}
	}
	if len(targets) == 0 {
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for n, i := range targets {
		n, i := n, i
		g.Go(func() error {
			url := out[i].URL
			logger.Debug("Getting article content", "n", n+1, "of", len(targets), "url", url)

			content, err := s.ExtractFullArticle(gctx, url)
			if err != nil {
				logger.Warn("Can't get article content", "url", url, "error", err)
				return nil
			}
			if summary := content.Summary(); summary != "" {
				out[i].Summary = summary
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func extractTitle(doc *goquery.Document) string {
	selectors := []string{
		"h1",
		"title",
		".article-title",
		".headline",
		".entry-title",
	}

	for _, selector := range selectors {
		title := strings.TrimSpace(doc.Find(selector).First().Text())
		if title != "" {
			return title
		}
	}
	return ""
}

func extractDescription(doc *goquery.Document) string {
	selectors := []string{
		`meta[property="og:description"]`,
		`meta[name="description"]`,
		`meta[name="twitter:description"]`,
	}

	for _, selector := range selectors {
		if v, ok := doc.Find(selector).First().Attr("content"); ok {
			if v = strings.Join(strings.Fields(v), " "); v != "" {
				return v
			}
		}
	}
	return ""
}

// extractParagraphs tries the common article containers before falling back
// to every paragraph on the page.
func extractParagraphs(doc *goquery.Document) string {
	var paragraphs []string

	selectors := []string{
		"article p",
		".article p",
		".article-body p",
		".content p",
		".post-content p",
		".entry-content p",
		"main p",
		"#content p",
		"p",
	}

	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) >= 3 {
			break
		}
	}

	return strings.Join(paragraphs, "\n\n")
}

var junkIndicators = []string{
	"cookie", "gdpr", "subscribe", "sign up", "newsletter",
	"advertisement", "read more", "click here", "follow us", "all rights reserved",
}

// cleanContent drops boilerplate paragraphs and collapses whitespace.
func cleanContent(content string) string {
	var kept []string
	for _, p := range strings.Split(content, "\n\n") {
		p = strings.Join(strings.Fields(p), " ")
		if len(p) < 30 {
			continue
		}
		lower := strings.ToLower(p)
		junk := false
		for _, indicator := range junkIndicators {
			if strings.Contains(lower, indicator) {
				junk = true
				break
			}
		}
		if !junk {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func firstParagraphs(content string, n int) string {
	if content == "" {
		return ""
	}
	paragraphs := strings.Split(content, "\n\n")
	if len(paragraphs) > n {
		paragraphs = paragraphs[:n]
	}
	return strings.Join(paragraphs, " ")
}

// truncate cuts on a word boundary and marks the cut with "...".
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)[:max-3]
	cut := string(r)
	if i := strings.LastIndex(cut, " "); i > max/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}
