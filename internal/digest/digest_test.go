package digest

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/MeterNews/internal/news"
)

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestFormat(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	articles := []news.Article{
		{Title: "Egypt rolls out meters", Source: "Daily News", Provider: "NewsAPI", PublishedAt: at("2025-03-09T14:30:00Z"), URL: "https://a.com/x"},
		{Title: "  "},
	}

	got := Format(articles, "  Trend up\n", now)

	want := "Electricity Meters & Grid News Digest\n" +
		"Generated: 2025-03-10 08:00\n" +
		"\n" +
		"1. Egypt rolls out meters\n" +
		"   Daily News | NewsAPI | 2025-03-09 14:30\n" +
		"   https://a.com/x\n" +
		"\n" +
		"2. Untitled\n" +
		"\n" +
		"AI Notes:\n" +
		"Trend up"
	assert.Equal(t, want, got)
}

func TestFormatEmpty(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	assert.Equal(t,
		"Electricity Meters & Grid News Digest\nGenerated: 2025-03-10 08:00\n\nNo new news items found for the selected period.",
		Format(nil, "", now))
	assert.True(t, strings.HasSuffix(Format(nil, "quiet week", now), "\n\nAI Notes:\nquiet week"))
}

func TestSortNewestFirst(t *testing.T) {
	articles := []news.Article{
		{Title: "undated"},
		{Title: "old", PublishedAt: at("2025-03-01T00:00:00Z")},
		{Title: "new", PublishedAt: at("2025-03-05T00:00:00Z")},
		{Title: "undated 2"},
	}

	SortNewestFirst(articles)

	var titles []string
	for _, a := range articles {
		titles = append(titles, a.Title)
	}
	assert.Equal(t, []string{"new", "old", "undated", "undated 2"}, titles)
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"short"}, Split("short", 100))
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, Split("aaaa\nbbbb\ncccc", 9))
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, Split("abcdefghij", 4))
}

func TestChunksStayWithinLimit(t *testing.T) {
	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines, fmt.Sprintf("%02d. Utility tender for prepaid meters", i))
	}
	message := strings.Join(lines, "\n")

	chunks := Chunks(message, 200)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 200)
		assert.True(t, strings.HasPrefix(c, fmt.Sprintf("(%d/%d)\n", i+1, len(chunks))), c)
	}
	assert.Contains(t, chunks[len(chunks)-1], "39. Utility tender")
}

func TestChunksSingleMessageUnlabelled(t *testing.T) {
	assert.Equal(t, []string{"one line"}, Chunks("one line", 1400))
}
