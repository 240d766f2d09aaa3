package news

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Article is a single news item as delivered by a provider.
type Article struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Source      string     `json:"source"`              // publication name
	Provider    string     `json:"provider"`            // fetcher that produced it
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Body        string     `json:"body,omitempty"`
}

// Text returns the free text used for content hashing.
func (a Article) Text() string {
	if s := strings.TrimSpace(a.Summary); s != "" {
		return s
	}
	return strings.TrimSpace(a.Body)
}

// HasText reports whether the article carries a body or summary.
func (a Article) HasText() bool {
	return a.Text() != ""
}

// minTitleRunes mirrors the cutoff below which a headline carries no usable signal.
const minTitleRunes = 10

// Metering vocabulary. Phrases match as substrings, single words as whole
// words ("kilometer" and "gridlock" are not about meters).
var meteringKeywords = []string{
	"meter", "meters", "metering", "smart grid", "prepaid", "ami", "amr",
	"advanced metering", "utility", "electricity", "grid", "grids",
}

// Words that mark a story as off-topic even when it mentions a meter
// (parking meters, taxi meters and the like).
var excludeKeywords = []string{
	"parking meter", "taxi meter", "parking meters", "taxi meters",
}

var wordRegexps = map[string]*regexp.Regexp{}

func init() {
	for _, k := range append(append([]string{}, meteringKeywords...), excludeKeywords...) {
		if !strings.Contains(k, " ") {
			wordRegexps[k] = regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
		}
	}
}

// containsAny distinguishes phrases and single words (avoids "ami" matching "family").
func containsAny(text string, keywords []string) bool {
	text = strings.ToLower(text)

	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}

		if re, ok := wordRegexps[k]; ok {
			if re.MatchString(text) {
				return true
			}
			continue
		}

		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// IsRelevant reports whether an article is worth feeding into the digest:
// a real headline about metering or the grid.
func IsRelevant(a Article) bool {
	title := strings.TrimSpace(a.Title)
	if utf8.RuneCountInString(title) < minTitleRunes {
		return false
	}
	text := title + " " + a.Text()
	if containsAny(text, excludeKeywords) {
		return false
	}
	return containsAny(text, meteringKeywords)
}

// FilterRelevant keeps relevant articles in input order.
func FilterRelevant(items []Article) []Article {
	out := make([]Article, 0, len(items))
	for _, a := range items {
		if IsRelevant(a) {
			out = append(out, a)
		}
	}
	return out
}
