package dedup

import (
	"sort"
	"strings"
	"unicode"
)

// tokenMatchRatio is the edit-distance ratio at which two longer words are
// treated as spelling variants of each other ("electricity"/"electricty").
const tokenMatchRatio = 0.8

// Matcher scores headline similarity and applies the duplicate decision rule.
// It holds no mutable state and is safe for concurrent use.
type Matcher struct {
	high float64
	low  float64
}

// NewMatcher builds a matcher with the thresholds from opts.
func NewMatcher(opts Options) *Matcher {
	return &Matcher{high: opts.HighThreshold, low: opts.LowThreshold}
}

// Score compares two normalized titles and returns a value in [0,1]. Word
// order is ignored because outlets reorder headline clauses. The score is
// symmetric and does not depend on map iteration.
func (m *Matcher) Score(a, b NormalizedArticle) float64 {
	return tokenScore(titleTokens(a.NormalizedTitle), titleTokens(b.NormalizedTitle))
}

// Duplicate applies the full rule to two normalized articles.
func (m *Matcher) Duplicate(a, b NormalizedArticle) bool {
	var fpr Fingerprinter
	return m.Decide(m.Score(a, b), fpr.Fingerprint(a), fpr.Fingerprint(b))
}

// Decide turns a title score into a verdict. Scores in the borderline band
// need the same body text on both sides; a hash built from the title alone
// proves nothing here.
func (m *Matcher) Decide(score float64, fa, fb Fingerprint) bool {
	switch {
	case score >= m.high:
		return true
	case score >= m.low:
		if fa.LowConfidence || fb.LowConfidence {
			return false
		}
		return fa.ContentHash == fb.ContentHash || (fa.BodyHash != "" && fa.BodyHash == fb.BodyHash)
	default:
		return false
	}
}

// titleTokens splits a normalized title into a sorted set of lightly stemmed words.
func titleTokens(title string) []string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = stem(f)
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// stem drops a plural "s" so "meters" and "meter" agree.
func stem(w string) string {
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}
	return w
}

// tokenScore is a soft Dice coefficient: the share of tokens on both sides
// that find an equal (or near-equal) token on the other side.
func tokenScore(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matched := countMatched(a, b) + countMatched(b, a)
	return float64(matched) / float64(len(a)+len(b))
}

func countMatched(src, dst []string) int {
	n := 0
	for _, t := range src {
		for _, u := range dst {
			if t == u || similarTokens(t, u) {
				n++
				break
			}
		}
	}
	return n
}

// similarTokens allows small misspellings in words of four runes or more.
// Anything with a digit must match exactly: "2024" and "2025" are different.
func similarTokens(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < 4 || len(rb) < 4 || hasDigit(ra) || hasDigit(rb) {
		return false
	}
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	diff := len(ra) - len(rb)
	if diff < 0 {
		diff = -diff
	}
	if float64(diff) > float64(longest)*(1-tokenMatchRatio) {
		return false
	}
	d := levenshtein(ra, rb)
	return 1-float64(d)/float64(longest) >= tokenMatchRatio
}

func hasDigit(r []rune) bool {
	for _, c := range r {
		if unicode.IsDigit(c) {
			return true
		}
	}
	return false
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
