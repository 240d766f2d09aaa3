// Package storage remembers stories delivered by earlier runs so the next
// digest does not repeat them.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/deusflow/MeterNews/internal/dedup"
)

// SentStory is one remembered key of a delivered story.
type SentStory struct {
	Key    string    `json:"key"`
	Title  string    `json:"title"`
	Link   string    `json:"link"`
	RunID  string    `json:"run_id,omitempty"`
	SentAt time.Time `json:"sent_at"`
}

// Keys returns the lookup keys of a fingerprint. A story is recognized when
// any key of a new article equals a remembered one. The content hash is left
// out: it always agrees with the title key when the title matches.
func Keys(fp dedup.Fingerprint) []string {
	var keys []string
	if fp.URLKey != "" {
		keys = append(keys, "u:"+shortHash(fp.URLKey))
	}
	if fp.TitleKey != "" {
		keys = append(keys, "t:"+shortHash(fp.TitleKey))
	}
	if fp.BodyHash != "" {
		keys = append(keys, "b:"+fp.BodyHash[:32])
	}
	return keys
}

// storiesFor expands delivered groups into one record per key. Every member
// is remembered so a syndicated copy is recognized as well.
func storiesFor(groups []dedup.DuplicateGroup, runID string, now time.Time) []SentStory {
	seen := make(map[string]bool)
	var out []SentStory
	for _, g := range groups {
		for _, fp := range g.Fingerprints {
			for _, k := range Keys(fp) {
				if seen[k] {
					continue
				}
				seen[k] = true
				out = append(out, SentStory{
					Key:    k,
					Title:  g.Representative.Title,
					Link:   g.Representative.URL,
					RunID:  runID,
					SentAt: now,
				})
			}
		}
	}
	return out
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:32]
}
