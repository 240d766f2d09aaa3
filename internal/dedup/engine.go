package dedup

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/MeterNews/internal/news"
)

// PriorSet is an optional memory of stories handled by earlier runs.
type PriorSet interface {
	Seen(fp Fingerprint) bool
}

// DuplicateGroup is one distinct story and every article that reported it.
type DuplicateGroup struct {
	Representative news.Article
	// Members are in input order and include the representative.
	Members []news.Article
	// Fingerprints align with Members.
	Fingerprints []Fingerprint
	// Indices are the input positions of Members.
	Indices []int
	// Seen is set when a prior-run memory recognized any member.
	Seen bool
}

// Size returns the number of articles in the group.
func (g DuplicateGroup) Size() int {
	return len(g.Members)
}

// Engine groups duplicate articles. One engine can serve many runs; it keeps
// no state between calls to Dedupe.
type Engine struct {
	opts       Options
	normalizer *Normalizer
	matcher    *Matcher
	fpr        Fingerprinter
	prior      PriorSet
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithPrior injects a memory of earlier runs.
func WithPrior(p PriorSet) EngineOption {
	return func(e *Engine) {
		e.prior = p
	}
}

// NewEngine validates opts and fails fast on bad configuration.
func NewEngine(opts Options, extra ...EngineOption) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dedup options: %w", err)
	}
	e := &Engine{
		opts:       opts,
		normalizer: NewNormalizer(opts),
		matcher:    NewMatcher(opts),
	}
	for _, o := range extra {
		o(e)
	}
	return e, nil
}

// Matcher exposes the engine's similarity matcher.
func (e *Engine) Matcher() *Matcher {
	return e.matcher
}

type entry struct {
	norm   NormalizedArticle
	fp     Fingerprint
	tokens []string
}

// Dedupe groups articles that report the same story. Groups come back in the
// input order of their representatives. The only error is cancellation of ctx.
func (e *Engine) Dedupe(ctx context.Context, articles []news.Article) ([]DuplicateGroup, error) {
	if len(articles) == 0 {
		return []DuplicateGroup{}, nil
	}

	entries, err := e.prepare(ctx, articles)
	if err != nil {
		return nil, err
	}

	uf := newUnionFind(len(entries))

	// An identical canonical URL settles the question without looking further.
	firstByURL := make(map[string]int)
	for i, en := range entries {
		if en.fp.URLKey == "" {
			continue
		}
		if first, ok := firstByURL[en.fp.URLKey]; ok {
			uf.union(first, i)
			continue
		}
		firstByURL[en.fp.URLKey] = i
	}

	candidates := make([]int, 0, len(entries))
	for i, en := range entries {
		if en.fp.TitleKey != "" {
			candidates = append(candidates, i)
		}
	}

	edges, err := e.compare(ctx, entries, candidates)
	if err != nil {
		return nil, err
	}
	for p, row := range edges {
		for _, j := range row {
			uf.union(candidates[p], j)
		}
	}

	return e.collect(articles, entries, uf), nil
}

// prepare normalizes and fingerprints every article in parallel. Each worker
// writes only its own slot.
func (e *Engine) prepare(ctx context.Context, articles []news.Article) ([]entry, error) {
	entries := make([]entry, len(articles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.workers())
	for i := range articles {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n := e.normalizer.Normalize(articles[i])
			entries[i] = entry{
				norm:   n,
				fp:     e.fpr.Fingerprint(n),
				tokens: titleTokens(n.NormalizedTitle),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// compare scores every candidate pair concurrently and returns, per candidate
// row, the later indices it duplicates. Unions are applied by the caller on a
// single goroutine.
func (e *Engine) compare(ctx context.Context, entries []entry, candidates []int) ([][]int, error) {
	rows := make([][]int, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.workers())
	for p := range candidates {
		p := p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a := entries[candidates[p]]
			var matches []int
			for _, j := range candidates[p+1:] {
				b := entries[j]
				if a.fp.URLKey != "" && a.fp.URLKey == b.fp.URLKey {
					continue
				}
				if e.matcher.Decide(tokenScore(a.tokens, b.tokens), a.fp, b.fp) {
					matches = append(matches, j)
				}
			}
			rows[p] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (e *Engine) collect(articles []news.Article, entries []entry, uf *unionFind) []DuplicateGroup {
	var roots []int
	components := make(map[int][]int)
	for i := range entries {
		r := uf.find(i)
		if _, ok := components[r]; !ok {
			roots = append(roots, r)
		}
		components[r] = append(components[r], i)
	}

	groups := make([]DuplicateGroup, 0, len(roots))
	repIndex := make([]int, 0, len(roots))
	for _, r := range roots {
		idxs := components[r]
		rep := pickRepresentative(articles, idxs)

		g := DuplicateGroup{
			Representative: articles[rep],
			Members:        make([]news.Article, 0, len(idxs)),
			Fingerprints:   make([]Fingerprint, 0, len(idxs)),
			Indices:        idxs,
		}
		for _, i := range idxs {
			g.Members = append(g.Members, articles[i])
			g.Fingerprints = append(g.Fingerprints, entries[i].fp)
			if e.prior != nil && !g.Seen && entries[i].fp.HasSignal() && e.prior.Seen(entries[i].fp) {
				g.Seen = true
			}
		}
		groups = append(groups, g)
		repIndex = append(repIndex, rep)
	}

	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return repIndex[order[a]] < repIndex[order[b]]
	})

	out := make([]DuplicateGroup, len(groups))
	for i, o := range order {
		out[i] = groups[o]
	}
	return out
}

// pickRepresentative prefers an article with text, then the earliest
// publication date, then the first one seen. idxs is in ascending order.
func pickRepresentative(articles []news.Article, idxs []int) int {
	best := idxs[0]
	for _, i := range idxs[1:] {
		if betterRepresentative(articles[i], articles[best]) {
			best = i
		}
	}
	return best
}

// betterRepresentative reports whether a should replace the current best b.
// Ties keep b, which always has the lower input index.
func betterRepresentative(a, b news.Article) bool {
	if a.HasText() != b.HasText() {
		return a.HasText()
	}
	switch {
	case a.PublishedAt == nil:
		return false
	case b.PublishedAt == nil:
		return true
	default:
		return a.PublishedAt.Before(*b.PublishedAt)
	}
}

// Representatives flattens groups into their representative articles.
func Representatives(groups []DuplicateGroup) []news.Article {
	out := make([]news.Article, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Representative)
	}
	return out
}

// Stats summarizes one dedup run.
type Stats struct {
	Input      int `json:"input"`
	Groups     int `json:"groups"`
	Duplicates int `json:"duplicates"`
	Merged     int `json:"merged_groups"`
	Largest    int `json:"largest_group"`
	Seen       int `json:"seen_groups"`
}

// Summarize counts what a run did.
func Summarize(groups []DuplicateGroup) Stats {
	var s Stats
	for _, g := range groups {
		s.Input += g.Size()
		s.Groups++
		if g.Size() > 1 {
			s.Merged++
		}
		if g.Size() > s.Largest {
			s.Largest = g.Size()
		}
		if g.Seen {
			s.Seen++
		}
	}
	s.Duplicates = s.Input - s.Groups
	return s
}
