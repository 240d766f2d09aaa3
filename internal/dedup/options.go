// Package dedup collapses a batch of news articles into groups that report the
// same story. It normalizes URLs and titles, fingerprints every article, merges
// exact URL matches and fuzzy title matches, and picks one representative per
// group. Everything here is in-memory and free of I/O.
package dedup

import (
	"fmt"
	"runtime"
	"strings"
)

// Default tuning values.
const (
	DefaultHighThreshold   = 0.85
	DefaultLowThreshold    = 0.60
	DefaultBodyPrefixRunes = 300
)

// DefaultTrackingParams are query parameters that never change the page a URL
// points at. Any parameter starting with "utm_" is dropped as well.
var DefaultTrackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"fbclid", "gclid", "dclid", "msclkid", "yclid", "igshid",
	"ref", "ref_src", "source", "mc_cid", "mc_eid",
	"_ga", "_gl", "ncid", "sr_share", "ocid", "cvid", "ei", "oref",
	"cmpid", "smid", "guccounter", "spm",
}

// Options tunes the engine.
type Options struct {
	// HighThreshold is the title score at or above which two articles are duplicates.
	HighThreshold float64
	// LowThreshold starts the borderline band where a matching content hash is required.
	LowThreshold float64
	// BodyPrefixRunes bounds how much body text goes into the content hash.
	// It must be positive; without a body every hash is low confidence.
	BodyPrefixRunes int
	// TrackingParams lists query parameters stripped during URL canonicalization.
	TrackingParams []string
	// Workers caps the goroutines used for normalization and comparison.
	// Zero means GOMAXPROCS.
	Workers int
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		HighThreshold:   DefaultHighThreshold,
		LowThreshold:    DefaultLowThreshold,
		BodyPrefixRunes: DefaultBodyPrefixRunes,
		TrackingParams:  append([]string(nil), DefaultTrackingParams...),
	}
}

// Validate rejects configurations that would make matching meaningless.
func (o Options) Validate() error {
	if o.HighThreshold < 0 || o.HighThreshold > 1 {
		return fmt.Errorf("high threshold %.2f outside [0,1]", o.HighThreshold)
	}
	if o.LowThreshold < 0 || o.LowThreshold > 1 {
		return fmt.Errorf("low threshold %.2f outside [0,1]", o.LowThreshold)
	}
	if o.LowThreshold > o.HighThreshold {
		return fmt.Errorf("low threshold %.2f above high threshold %.2f", o.LowThreshold, o.HighThreshold)
	}
	if o.BodyPrefixRunes < 1 {
		return fmt.Errorf("body prefix length %d must be at least 1", o.BodyPrefixRunes)
	}
	if o.Workers < 0 {
		return fmt.Errorf("worker count %d is negative", o.Workers)
	}
	return nil
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) trackingSet() map[string]struct{} {
	set := make(map[string]struct{}, len(o.TrackingParams))
	for _, p := range o.TrackingParams {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}
