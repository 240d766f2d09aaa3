package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deusflow/MeterNews/internal/news"
)

func TestCanonicalURL(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"tracking param and casing", "http://x.com/a?utm_source=fb", "https://x.com/a"},
		{"uppercase host and trailing slash", "http://X.com/a/", "https://x.com/a"},
		{"www and fragment", "https://www.Example.com/News/Item#comments", "https://example.com/news/item"},
		{"default port", "http://example.com:80/story", "https://example.com/story"},
		{"https default port", "https://example.com:443/story", "https://example.com/story"},
		{"custom port kept", "http://example.com:8080/story", "https://example.com:8080/story"},
		{"content params kept and sorted", "https://example.com/view?p=2&id=77&fbclid=abc", "https://example.com/view?id=77&p=2"},
		{"any utm prefix dropped", "https://example.com/a?utm_whatever=1&gclid=2", "https://example.com/a"},
		{"missing scheme", "example.com/a/b/", "https://example.com/a/b"},
		{"protocol relative", "//example.com/a", "https://example.com/a"},
		{"empty", "", ""},
		{"not a url", "not a url", ""},
		{"unsupported scheme", "ftp://example.com/file", ""},
		{"bare word", "Untitled", ""},
		{"site root", "http://x.com/", ""},
		{"site root with tracking only", "https://X.com?utm_source=fb", ""},
		{"site root with content param", "https://x.com/?p=123", "https://x.com?p=123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.CanonicalURL(tt.in))
		})
	}
}

func TestCanonicalURLCustomTrackingList(t *testing.T) {
	opts := DefaultOptions()
	opts.TrackingParams = []string{"session"}
	n := NewNormalizer(opts)

	assert.Equal(t, "https://example.com/a?ref=x", n.CanonicalURL("https://example.com/a?session=1&ref=x"))
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		source string
		want   string
	}{
		{"google news suffix", "Egypt rolls out 2 million smart meters - Daily News Egypt", "Daily News Egypt", "egypt rolls out 2 million smart meters"},
		{"short outlet tag", "Kenya Power expands prepaid meter programme | The Star", "", "kenya power expands prepaid meter programme"},
		{"em dash outlet", "Saudi utility signs AMI deal — Reuters", "", "saudi utility signs ami deal"},
		{"leading wire credit", "(Reuters) - Nigeria approves meter funding", "", "nigeria approves meter funding"},
		{"breaking label", "BREAKING: Morocco launches smart grid pilot", "", "morocco launches smart grid pilot"},
		{"source prefix", "Zawya: UAE utility tenders smart meters", "Zawya", "uae utility tenders smart meters"},
		{"accents and punctuation", "Côte d'Ivoire: compteurs intelligents, phase 2!", "", "cote d ivoire compteurs intelligents phase 2"},
		{"long tail kept", "Smart meters - what the new tariff rules mean for households", "", "smart meters what the new tariff rules mean for households"},
		{"empty", "   ", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.title, tt.source))
		})
	}
}

func TestNormalizeBodyIsBounded(t *testing.T) {
	opts := DefaultOptions()
	opts.BodyPrefixRunes = 12
	n := NewNormalizer(opts)

	got := n.Normalize(news.Article{Title: "x", Summary: "The   Quick, brown fox jumps over the lazy dog"})
	assert.Equal(t, "the quick br", got.NormalizedBody)
}

func TestNormalizeIsTotalOnBadInput(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	got := n.Normalize(news.Article{URL: "http://%zz", Title: "bad \xff\xfe bytes", Body: "\xff"})
	assert.Equal(t, "", got.CanonicalURL)
	assert.Equal(t, "bad bytes", got.NormalizedTitle)
	assert.Equal(t, "", got.NormalizedBody)
}
