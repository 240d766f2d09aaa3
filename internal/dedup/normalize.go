package dedup

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/deusflow/MeterNews/internal/news"
)

// NormalizedArticle holds the comparable forms of one article.
type NormalizedArticle struct {
	CanonicalURL    string
	NormalizedTitle string
	NormalizedBody  string // bounded prefix, empty when the article has no text
}

// Normalizer canonicalizes URLs and free text. It is safe for concurrent use.
type Normalizer struct {
	tracking   map[string]struct{}
	bodyPrefix int
}

// NewNormalizer builds a normalizer from engine options.
func NewNormalizer(opts Options) *Normalizer {
	return &Normalizer{
		tracking:   opts.trackingSet(),
		bodyPrefix: opts.BodyPrefixRunes,
	}
}

// Normalize never fails; unusable fields come back empty.
func (n *Normalizer) Normalize(a news.Article) NormalizedArticle {
	return NormalizedArticle{
		CanonicalURL:    n.CanonicalURL(a.URL),
		NormalizedTitle: NormalizeTitle(a.Title, a.Source),
		NormalizedBody:  truncateRunes(normalizeText(a.Text()), n.bodyPrefix),
	}
}

// CanonicalURL reduces a URL to https://host/path?kept-params. The scheme is
// folded to https, "www." and default ports are dropped, tracking parameters
// and the fragment are removed and the result is lowercased except for the
// values of kept query parameters. Anything that is not an http(s) URL with a
// real host yields "". So does a bare site root: it names an outlet, not a
// story.
func (n *Normalizer) CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	} else if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" || !strings.Contains(host, ".") {
		return ""
	}
	if port := u.Port(); port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host += ":" + port
	}

	path := strings.TrimRight(strings.ToLower(u.EscapedPath()), "/")

	// ParseQuery keeps every well-formed pair even when it reports an error.
	params, _ := url.ParseQuery(u.RawQuery)
	for key := range params {
		lower := strings.ToLower(key)
		if _, drop := n.tracking[lower]; drop || strings.HasPrefix(lower, "utm_") {
			params.Del(key)
		}
	}

	q := lowerKeys(params)
	if path == "" && q == "" {
		return ""
	}
	out := "https://" + host + path
	if q != "" {
		out += "?" + q
	}
	return out
}

// lowerKeys encodes params with lowercased keys, sorted.
func lowerKeys(params url.Values) string {
	lowered := url.Values{}
	for k, vs := range params {
		lk := strings.ToLower(k)
		lowered[lk] = append(lowered[lk], vs...)
	}
	return lowered.Encode()
}

// Leading labels outlets prepend to headlines.
var leadingLabel = regexp.MustCompile(`^(breaking( news)?|update[d]?|exclusive|just in|developing|watch|live|opinion|analysis|video|photos|press release|sponsored)\s*[:\-–—|]\s*`)

// "(Reuters) - ..." or "(AFP) ..."
var leadingParenthetical = regexp.MustCompile(`^\([^()]{1,40}\)\s*[:\-–—]?\s*`)

// "... (Reuters)"
var trailingParenthetical = regexp.MustCompile(`\s*\([^()]{1,40}\)$`)

var titleSeparators = []string{" - ", " | ", " — ", " – ", " :: "}

// NormalizeTitle folds a headline for comparison: accents removed, lowercase,
// source attribution stripped, punctuation replaced by spaces, whitespace
// collapsed.
func NormalizeTitle(title, source string) string {
	t := strings.ToLower(strings.TrimSpace(foldAccents(title)))
	if t == "" {
		return ""
	}
	src := normalizeText(source)

	t = leadingParenthetical.ReplaceAllString(t, "")
	t = leadingLabel.ReplaceAllString(t, "")
	if src != "" {
		for _, sep := range []string{":", " - ", " | "} {
			prefix := strings.ToLower(strings.TrimSpace(foldAccents(source))) + sep
			if strings.HasPrefix(t, prefix) {
				t = strings.TrimSpace(strings.TrimPrefix(t, prefix))
				break
			}
		}
	}

	t = stripTrailingAttribution(t, src)
	t = trailingParenthetical.ReplaceAllString(t, "")

	return normalizeText(t)
}

// stripTrailingAttribution removes " - Outlet" style suffixes. The suffix goes
// when it names the article's source, or when it is a short tag hanging off a
// headline of real length.
func stripTrailingAttribution(t, src string) string {
	cut, sepLen := -1, 0
	for _, sep := range titleSeparators {
		if i := strings.LastIndex(t, sep); i > cut {
			cut, sepLen = i, len(sep)
		}
	}
	if cut <= 0 {
		return t
	}

	head := strings.TrimSpace(t[:cut])
	tail := normalizeText(t[cut+sepLen:])
	if tail == "" {
		return head
	}
	if src != "" && (tail == src || strings.HasPrefix(tail, src+" ")) {
		return head
	}
	if len(strings.Fields(tail)) <= 4 && len(strings.Fields(normalizeText(head))) >= 3 {
		return head
	}
	return t
}

// normalizeText lowercases, folds accents, keeps letters and digits and
// collapses everything else into single spaces.
func normalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = foldAccents(s)
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// foldAccents applies NFKD and drops combining marks. Invalid UTF-8 is
// replaced first so the transform cannot fail on it.
func foldAccents(s string) string {
	s = strings.ToValidUTF8(s, " ")
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || s == "" {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit]))
}
