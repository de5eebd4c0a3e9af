package song

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/FocuswithJustin/VocesDelReino/internal/anchor"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// promptData is the template input.
type promptData struct {
	Title          string
	Tonality       string
	Key            string
	Tempo          int
	TimeSignature  string
	Style          string
	Topic          string
	Verse          string
	Focus          string
	Prompt         string
	Anchor         string
	HasPassage     bool
	HasCandidates  bool
	AllowList      []string
	PreviousLyrics string
}

// BuildPrompt renders the instruction prompt for req in its language. The
// request must already be normalized.
func BuildPrompt(req Request, a anchor.Anchor, allowList []string) (string, error) {
	name := req.Language + ".tmpl"
	if templates.Lookup(name) == nil {
		return "", fmt.Errorf("no prompt template for language %q", req.Language)
	}

	focus := req.ScriptureFocus
	if focus == "" {
		focus = a.Focus
	}

	prev := "NONE"
	if len(req.PreviousLyrics) > 0 {
		prev = strings.Join(req.PreviousLyrics, "\n---\n")
	}

	data := promptData{
		Title:          req.Title,
		Tonality:       TonalityLabel(req.Key, req.Mode, req.MinorType, req.Language),
		Key:            req.Key,
		Tempo:          req.Tempo,
		TimeSignature:  req.TimeSignature,
		Style:          req.Style,
		Topic:          req.Topic,
		Verse:          req.Verse,
		Focus:          focus,
		Prompt:         req.Prompt,
		Anchor:         a.PromptBlock(),
		HasPassage:     a.Outcome() == anchor.OutcomePassage,
		HasCandidates:  a.Outcome() == anchor.OutcomeCandidates,
		AllowList:      allowList,
		PreviousLyrics: prev,
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}
