// Package song turns a generation request into a structured song draft:
// it resolves the scripture anchor, renders the prompt, calls the
// completion backend and coerces the reply.
package song

import (
	"strings"

	"github.com/FocuswithJustin/VocesDelReino/core/chord"
	"github.com/FocuswithJustin/VocesDelReino/core/errors"
)

// Request defaults.
const (
	DefaultLanguage      = "es"
	DefaultStyle         = "Worship pentecostal moderno"
	DefaultKey           = "D"
	DefaultTempo         = 74
	DefaultTimeSignature = "4/4"
)

// Request is one song generation request.
type Request struct {
	Language       string   `json:"language,omitempty"`
	Title          string   `json:"title,omitempty"`
	Topic          string   `json:"topic,omitempty"`
	Verse          string   `json:"verse,omitempty"`
	Style          string   `json:"style,omitempty"`
	Key            string   `json:"key,omitempty"`
	Mode           string   `json:"mode,omitempty"`      // major | minor
	MinorType      string   `json:"minorType,omitempty"` // natural | harmonic | melodic
	Tempo          int      `json:"tempo,omitempty"`
	TimeSignature  string   `json:"timeSignature,omitempty"`
	Prompt         string   `json:"prompt,omitempty"`
	PreviousLyrics []string `json:"previousLyrics,omitempty"`
	ScriptureFocus string   `json:"scriptureFocus,omitempty"`
}

// Normalize collapses whitespace and fills in defaults. Tempo is left alone
// when negative so Validate can reject it.
func (r *Request) Normalize() {
	r.Language = strings.ToLower(collapse(r.Language))
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	r.Title = collapse(r.Title)
	r.Topic = collapse(r.Topic)
	r.Verse = collapse(r.Verse)
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.ScriptureFocus = collapse(r.ScriptureFocus)

	r.Style = collapse(r.Style)
	if r.Style == "" {
		r.Style = DefaultStyle
	}
	r.Key = collapse(r.Key)
	if r.Key == "" {
		r.Key = DefaultKey
	}

	r.Mode = strings.ToLower(collapse(r.Mode))
	if r.Mode == "" {
		r.Mode = "major"
	}
	r.MinorType = strings.ToLower(collapse(r.MinorType))
	if r.Mode == "minor" && r.MinorType == "" {
		r.MinorType = "natural"
	}
	if r.Mode == "major" {
		r.MinorType = ""
	}

	if r.Tempo == 0 {
		r.Tempo = DefaultTempo
	}
	if r.Tempo > 0 {
		r.Tempo = chord.ClampTempo(r.Tempo)
	}
	r.TimeSignature = strings.ReplaceAll(r.TimeSignature, " ", "")
	if r.TimeSignature == "" {
		r.TimeSignature = DefaultTimeSignature
	}

	var prev []string
	for _, l := range r.PreviousLyrics {
		if l = strings.TrimSpace(l); l != "" {
			prev = append(prev, l)
		}
	}
	r.PreviousLyrics = prev
}

// Validate reports the first invalid field. Call Normalize first.
func (r *Request) Validate() error {
	switch r.Language {
	case "es", "en":
	default:
		return &errors.ValidationError{Field: "language", Value: r.Language, Message: "must be es or en"}
	}
	switch r.Mode {
	case "major", "minor":
	default:
		return &errors.ValidationError{Field: "mode", Value: r.Mode, Message: "must be major or minor"}
	}
	switch r.MinorType {
	case "", "natural", "harmonic", "melodic":
	default:
		return &errors.ValidationError{Field: "minorType", Value: r.MinorType, Message: "must be natural, harmonic or melodic"}
	}
	switch r.TimeSignature {
	case "4/4", "3/4", "6/8":
	default:
		return &errors.ValidationError{Field: "timeSignature", Value: r.TimeSignature, Message: "must be 4/4, 3/4 or 6/8"}
	}
	if r.Tempo <= 0 {
		return errors.NewValidation("tempo", "must be positive")
	}
	if _, ok := chord.Parse(r.Key); !ok {
		return &errors.ValidationError{Field: "key", Value: r.Key, Message: "not a recognizable key"}
	}
	return nil
}

// FreeText is the text keyword-searched when the focus does not resolve.
func (r *Request) FreeText() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{r.Topic, r.Verse, r.Title, r.Prompt} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// TonalityLabel renders a key and mode for display, e.g. "D Mayor",
// "A Menor armónica" or "E harmonic minor".
func TonalityLabel(key, mode, minorType, lang string) string {
	if lang == "en" {
		if mode != "minor" {
			return key + " major"
		}
		if minorType == "" {
			minorType = "natural"
		}
		return key + " " + minorType + " minor"
	}

	if mode != "minor" {
		return key + " Mayor"
	}
	switch minorType {
	case "harmonic":
		return key + " Menor armónica"
	case "melodic":
		return key + " Menor melódica"
	}
	return key + " Menor natural"
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
