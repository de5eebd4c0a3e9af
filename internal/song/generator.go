package song

import (
	"context"
	"fmt"
	"time"

	"github.com/FocuswithJustin/VocesDelReino/internal/anchor"
	"github.com/FocuswithJustin/VocesDelReino/internal/completion"
	"github.com/FocuswithJustin/VocesDelReino/internal/logging"
	"github.com/FocuswithJustin/VocesDelReino/internal/metrics"
)

// Generation stages reported to a ProgressFunc.
const (
	StageResolving  = "resolving"
	StagePrompting  = "prompting"
	StageGenerating = "generating"
	StageDecoding   = "decoding"
	StageDone       = "done"
)

// Progress is one step of a generation.
type Progress struct {
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
}

// ProgressFunc receives progress events. It is called synchronously.
type ProgressFunc func(Progress)

// Result is a finished generation.
type Result struct {
	Draft   Draft         `json:"draft"`
	Anchor  anchor.Anchor `json:"anchor"`
	Backend string        `json:"backend"`
}

// Generator produces drafts. The zero Temperature means 0; use a negative
// value for the backend default.
type Generator struct {
	Resolver    *anchor.Resolver // optional; nil skips scripture resolution
	Completion  completion.Client
	AllowList   []string
	Temperature float64
	Model       string
	Metrics     *metrics.Metrics // optional
}

// Generate runs one generation without progress reporting.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	return g.GenerateWithProgress(ctx, req, nil)
}

// GenerateWithProgress normalizes and validates req, resolves its scripture
// anchor, calls the completion backend and coerces the reply. Scripture
// failures never fail a generation.
func (g *Generator) GenerateWithProgress(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	report := func(stage string, pct int, msg string) {
		if progress != nil {
			progress(Progress{Stage: stage, Percent: pct, Message: msg})
		}
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if g.Completion == nil {
		return nil, fmt.Errorf("no completion backend configured")
	}

	report(StageResolving, 10, req.ScriptureFocus)
	var a anchor.Anchor
	if g.Resolver != nil {
		a = g.Resolver.Resolve(ctx, req.ScriptureFocus, req.FreeText())
	}

	report(StagePrompting, 30, a.Outcome())
	prompt, err := BuildPrompt(req, a, g.AllowList)
	if err != nil {
		return nil, err
	}

	report(StageGenerating, 40, g.Completion.Name())
	start := time.Now()
	text, err := g.Completion.Complete(ctx, completion.Request{
		Prompt:      prompt,
		Model:       g.Model,
		Temperature: g.Temperature,
		JSON:        true,
	})
	elapsed := time.Since(start)
	logging.CompletionCall(ctx, g.Completion.Name(), g.Model, elapsed, err)
	if err != nil {
		g.Metrics.RecordCompletion(g.Completion.Name(), completion.Outcome(err), elapsed)
		return nil, fmt.Errorf("generate song: %w", err)
	}

	report(StageDecoding, 90, "")
	raw, err := Decode(text)
	if err != nil {
		g.Metrics.RecordCompletion(g.Completion.Name(), "invalid_format", elapsed)
		logging.WarnContext(ctx, "completion reply not decodable",
			"backend", g.Completion.Name(),
			"error", err.Error())
		return nil, err
	}
	g.Metrics.RecordCompletion(g.Completion.Name(), "ok", elapsed)

	d := Coerce(raw, req)
	d.BibleReferences = FilterReferences(d.BibleReferences, g.AllowList)
	if d.ScriptureFocus == "" {
		d.ScriptureFocus = req.ScriptureFocus
	}
	if d.ScriptureFocus == "" {
		d.ScriptureFocus = a.Focus
	}

	report(StageDone, 100, d.Title)
	return &Result{Draft: d, Anchor: a, Backend: g.Completion.Name()}, nil
}
