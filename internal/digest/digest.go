// Package digest turns deduplicated articles into the text message that is
// delivered to subscribers.
package digest

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/deusflow/MeterNews/internal/news"
)

const (
	Title      = "Electricity Meters & Grid News Digest"
	EmptyNote  = "No new news items found for the selected period."
	NotesLabel = "AI Notes:"

	timeLayout = "2006-01-02 15:04"
)

// SortNewestFirst orders articles by publication date, newest first.
// Undated articles go last; ties keep their input order.
func SortNewestFirst(articles []news.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return Newer(articles[i], articles[j])
	})
}

// Newer reports whether a sorts before b in a digest.
func Newer(a, b news.Article) bool {
	switch {
	case a.PublishedAt == nil:
		return false
	case b.PublishedAt == nil:
		return true
	default:
		return a.PublishedAt.After(*b.PublishedAt)
	}
}

// Format renders the digest. analysis is appended under "AI Notes:" when set.
func Format(articles []news.Article, analysis string, now time.Time) string {
	lines := []string{
		Title,
		"Generated: " + now.Format(timeLayout),
		"",
	}
	analysis = strings.TrimSpace(analysis)

	if len(articles) == 0 {
		lines = append(lines, EmptyNote)
		if analysis != "" {
			lines = append(lines, "", NotesLabel, analysis)
		}
		return strings.TrimSpace(strings.Join(lines, "\n"))
	}

	for i, a := range articles {
		title := strings.TrimSpace(a.Title)
		if title == "" {
			title = "Untitled"
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, title))
		if meta := metaLine(a); meta != "" {
			lines = append(lines, "   "+meta)
		}
		if u := strings.TrimSpace(a.URL); u != "" {
			lines = append(lines, "   "+u)
		}
		lines = append(lines, "")
	}

	if analysis != "" {
		lines = append(lines, NotesLabel, analysis, "")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func metaLine(a news.Article) string {
	var parts []string
	for _, p := range []string{a.Source, a.Provider} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if a.PublishedAt != nil {
		parts = append(parts, a.PublishedAt.Format(timeLayout))
	}
	return strings.Join(parts, " | ")
}

// Split breaks message into chunks of at most maxChars runes, cutting on line
// boundaries. A single line longer than maxChars is cut inside the line.
func Split(message string, maxChars int) []string {
	if maxChars <= 0 || utf8.RuneCountInString(message) <= maxChars {
		return []string{message}
	}

	var chunks []string
	var cur []string
	curLen := 0
	flush := func() {
		if c := strings.TrimSpace(strings.Join(cur, "\n")); c != "" {
			chunks = append(chunks, c)
		}
		cur, curLen = nil, 0
	}

	for _, line := range strings.Split(message, "\n") {
		for _, piece := range hardWrap(line, maxChars) {
			n := utf8.RuneCountInString(piece) + 1
			if len(cur) > 0 && curLen+n > maxChars+1 {
				flush()
			}
			cur = append(cur, piece)
			curLen += n
		}
	}
	flush()

	if len(chunks) == 0 {
		return []string{string([]rune(message)[:maxChars])}
	}
	return chunks
}

func hardWrap(line string, maxChars int) []string {
	r := []rune(line)
	if len(r) <= maxChars {
		return []string{line}
	}
	var out []string
	for len(r) > maxChars {
		out = append(out, string(r[:maxChars]))
		r = r[maxChars:]
	}
	return append(out, string(r))
}

// labelReserve is room for a "(nn/nn)\n" prefix.
const labelReserve = 8

// Chunks splits message for a channel limited to maxChars per message and
// prefixes each chunk with "(i/n)" when there is more than one.
func Chunks(message string, maxChars int) []string {
	chunks := Split(message, maxChars)
	if len(chunks) == 1 {
		return chunks
	}
	if maxChars > 2*labelReserve {
		chunks = Split(message, maxChars-labelReserve)
	}
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = fmt.Sprintf("(%d/%d)\n%s", i+1, len(chunks), c)
	}
	return out
}
