// Package anchor resolves the scripture material a song is anchored to:
// an exact passage when the focus is a citation, otherwise keyword
// candidates, otherwise nothing. Resolution never fails.
package anchor

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FocuswithJustin/VocesDelReino/core/scripture"
	"github.com/FocuswithJustin/VocesDelReino/core/verses"
	"github.com/FocuswithJustin/VocesDelReino/internal/logging"
	"github.com/FocuswithJustin/VocesDelReino/internal/metrics"
)

// Lookup returns the passage for a parsed reference. A missing passage is
// (nil, nil); errors are reserved for backend failures.
type Lookup interface {
	Lookup(ctx context.Context, ref scripture.Reference) (*verses.Passage, error)
}

// Searcher runs keyword searches. *verses.Store and *verses.LazyStore
// satisfy it.
type Searcher interface {
	Search(query string, limit int) []verses.Match
}

// storeLookup is the exact-lookup half of a verse store.
type storeLookup interface {
	Lookup(ref scripture.Reference) (*verses.Passage, bool)
}

// DatasetLookup adapts a verse store to Lookup.
type DatasetLookup struct {
	Store storeLookup
}

// Lookup never returns an error.
func (d DatasetLookup) Lookup(_ context.Context, ref scripture.Reference) (*verses.Passage, error) {
	if p, ok := d.Store.Lookup(ref); ok {
		return p, nil
	}
	return nil, nil
}

// Outcomes reported in logs and metrics.
const (
	OutcomePassage    = "passage"
	OutcomeCandidates = "candidates"
	OutcomeNone       = "none"
)

// Anchor is the resolved scripture material. At most one of Passage and
// Candidates is set.
type Anchor struct {
	Focus      string          `json:"focus,omitempty"`
	Passage    *verses.Passage `json:"passage,omitempty"`
	Candidates []verses.Match  `json:"candidates,omitempty"`
}

// Outcome reports which kind of anchor was found.
func (a Anchor) Outcome() string {
	switch {
	case a.Passage != nil:
		return OutcomePassage
	case len(a.Candidates) > 0:
		return OutcomeCandidates
	}
	return OutcomeNone
}

// Empty reports whether no scripture material was found.
func (a Anchor) Empty() bool {
	return a.Outcome() == OutcomeNone
}

// PromptBlock renders the anchor for a prompt: the passage text under its
// label, the candidate list, or NONE.
func (a Anchor) PromptBlock() string {
	switch a.Outcome() {
	case OutcomePassage:
		header := a.Passage.Reference
		if a.Passage.Translation != "" {
			header += " (" + a.Passage.Translation + ")"
		}
		return header + "\n" + a.Passage.Text
	case OutcomeCandidates:
		return verses.FormatMatches(a.Candidates)
	}
	return "NONE"
}

// DefaultCandidateLimit bounds the candidates kept for a prompt.
const DefaultCandidateLimit = 5

// Resolver turns a focus string and free text into an Anchor.
type Resolver struct {
	Lookup  Lookup
	Search  Searcher
	Limit   int              // candidate limit, DefaultCandidateLimit when <= 0
	Metrics *metrics.Metrics // optional
}

// Resolve parses focus and looks it up. When focus is not a citation it is
// keyword-searched itself. When the lookup misses, or the focus search finds
// nothing, freeText is searched instead. The lookup and both searches run
// concurrently. Backend failures are logged and treated as misses.
func (r *Resolver) Resolve(ctx context.Context, focus, freeText string) Anchor {
	focus = strings.TrimSpace(focus)
	freeText = strings.TrimSpace(freeText)

	var (
		passage   *verses.Passage
		focusHits []verses.Match
		freeHits  []verses.Match
	)

	g, gctx := errgroup.WithContext(ctx)

	ref, parsed := scripture.Parse(focus)
	if parsed && r.Lookup != nil {
		g.Go(func() error {
			p, err := r.Lookup.Lookup(gctx, ref)
			if err != nil {
				logging.WarnContext(ctx, "scripture lookup failed",
					"reference", ref.Label(),
					"error", err.Error())
				return nil
			}
			passage = p
			return nil
		})
	}

	if !parsed && focus != "" {
		g.Go(func() error {
			focusHits = r.search(focus)
			return nil
		})
	}

	if freeText != "" && freeText != focus {
		g.Go(func() error {
			freeHits = r.search(freeText)
			return nil
		})
	}

	_ = g.Wait()

	candidates := focusHits
	if len(candidates) == 0 {
		candidates = freeHits
	}

	var a Anchor
	switch {
	case passage != nil:
		a = Anchor{Focus: passage.Reference, Passage: passage}
	case len(candidates) > 0:
		a = Anchor{Focus: verses.FocusFromMatches(candidates), Candidates: candidates}
	}

	r.Metrics.RecordResolution(a.Outcome())
	logging.ScriptureResolved(ctx, focus, a.Outcome(), len(a.Candidates))
	return a
}

func (r *Resolver) search(query string) []verses.Match {
	if r.Search == nil {
		return nil
	}
	start := time.Now()
	matches := r.Search.Search(query, r.limit())
	r.Metrics.RecordSearch(time.Since(start))
	return matches
}

func (r *Resolver) limit() int {
	if r.Limit <= 0 {
		return DefaultCandidateLimit
	}
	return r.Limit
}
