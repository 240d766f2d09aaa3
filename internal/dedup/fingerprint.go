package dedup

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint is the set of comparison keys derived from a normalized article.
type Fingerprint struct {
	URLKey      string
	TitleKey    string
	ContentHash string
	// BodyHash covers the body prefix alone, so two outlets that reword a
	// headline but carry the same wire copy still agree. Empty without a body.
	BodyHash string
	// LowConfidence marks a hash computed without body text. Such a hash is
	// only a tie-breaker next to title similarity, never proof on its own.
	LowConfidence bool
}

// HasSignal reports whether the article can be matched against anything.
func (f Fingerprint) HasSignal() bool {
	return f.URLKey != "" || f.TitleKey != ""
}

// Fingerprinter derives comparison keys. The zero value is ready to use.
type Fingerprinter struct{}

// Fingerprint is pure and total.
func (Fingerprinter) Fingerprint(n NormalizedArticle) Fingerprint {
	fp := Fingerprint{
		URLKey:        n.CanonicalURL,
		TitleKey:      n.NormalizedTitle,
		LowConfidence: n.NormalizedBody == "",
	}
	if n.NormalizedTitle == "" && n.NormalizedBody == "" {
		return fp
	}

	fp.ContentHash = digest(n.NormalizedTitle + "\n" + n.NormalizedBody)
	if n.NormalizedBody != "" {
		fp.BodyHash = digest(n.NormalizedBody)
	}
	return fp
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
