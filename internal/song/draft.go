package song

import (
	"encoding/json"
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/VocesDelReino/core/chord"
	"github.com/FocuswithJustin/VocesDelReino/core/errors"
	"github.com/FocuswithJustin/VocesDelReino/core/scripture"
)

// Draft is a generated song. Title, key, tempo, time signature, chords and
// lyrics are always set after Coerce.
type Draft struct {
	Title           string   `json:"title"`
	Key             string   `json:"key"`
	Tempo           int      `json:"tempo"`
	TimeSignature   string   `json:"timeSignature"`
	Chords          []string `json:"chords"`
	Lyrics          string   `json:"lyrics"`
	BibleReferences []string `json:"bibleReferences"`
	WorshipTags     []string `json:"worshipTags,omitempty"`
	ScriptureFocus  string   `json:"scriptureFocus,omitempty"`
	Notes           *Notes   `json:"notes,omitempty"`
}

// Notes carries optional melodic hints.
type Notes struct {
	Scale     string   `json:"scale,omitempty"`
	HookNotes []string `json:"hookNotes,omitempty"`
}

var errNoObject = stderrors.New("no JSON object in reply")

// Decode reads a song object from completion text. The whole text is tried
// first, then the span from the first '{' to the last '}'.
func Decode(text string) (map[string]any, error) {
	var raw map[string]any
	strictErr := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw)
	if strictErr == nil && raw != nil {
		return raw, nil
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		if strictErr == nil {
			strictErr = errNoObject
		}
		return nil, errors.NewGenerationFormat("strict", text, strictErr)
	}

	raw = nil
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, errors.NewGenerationFormat("extract", text, err)
	}
	if raw == nil {
		return nil, errors.NewGenerationFormat("extract", text, errNoObject)
	}
	return raw, nil
}

// Coerce builds a Draft from a decoded reply, falling back to the request
// for missing or mistyped fields.
func Coerce(raw map[string]any, req Request) Draft {
	d := Draft{
		Title:           stringField(raw["title"]),
		Key:             stringField(raw["key"]),
		Tempo:           intField(raw["tempo"]),
		TimeSignature:   stringField(raw["timeSignature"]),
		Chords:          listField(raw["chords"]),
		Lyrics:          textField(raw["lyrics"]),
		BibleReferences: listField(raw["bibleReferences"]),
		WorshipTags:     listField(raw["worshipTags"]),
		ScriptureFocus:  stringField(raw["scriptureFocus"]),
	}

	if d.Title == "" {
		d.Title = "Canción generada"
		if req.Language == "en" {
			d.Title = "Generated song"
		}
	}
	if d.Key == "" {
		d.Key = req.Key
	}
	if d.Tempo <= 0 {
		d.Tempo = req.Tempo
	}
	d.Tempo = chord.ClampTempo(d.Tempo)
	if d.TimeSignature == "" {
		d.TimeSignature = req.TimeSignature
	}
	if d.TimeSignature == "" {
		d.TimeSignature = DefaultTimeSignature
	}
	if d.Chords == nil {
		d.Chords = []string{}
	}
	if d.BibleReferences == nil {
		d.BibleReferences = []string{}
	}

	if n, ok := raw["notes"].(map[string]any); ok {
		notes := &Notes{
			Scale:     stringField(n["scale"]),
			HookNotes: listField(n["hookNotes"]),
		}
		if notes.Scale != "" || len(notes.HookNotes) > 0 {
			d.Notes = notes
		}
	}
	return d
}

func stringField(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func intField(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err == nil {
			return int(f)
		}
	}
	return 0
}

// textField accepts a string or a list of lines.
func textField(v any) string {
	if list, ok := v.([]any); ok {
		lines := make([]string, 0, len(list))
		for _, item := range list {
			lines = append(lines, stringField(item))
		}
		return strings.Join(lines, "\n")
	}
	return stringField(v)
}

// listField accepts a list, or a newline-separated string. Empty items are
// dropped.
func listField(v any) []string {
	var items []string
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			items = append(items, stringField(item))
		}
	case string:
		items = strings.Split(x, "\n")
	default:
		return nil
	}

	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FilterReferences keeps the references that appear in allow, comparing
// parsed citations where both sides parse and normalized text otherwise.
// An empty allow list keeps everything. Duplicates are dropped.
func FilterReferences(refs, allow []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	add := func(s string) {
		key := scripture.Normalize(s)
		if ref, ok := scripture.Parse(s); ok {
			key = ref.Label()
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, s)
		}
	}

	if len(allow) == 0 {
		for _, r := range refs {
			if r = strings.TrimSpace(r); r != "" {
				add(r)
			}
		}
		return out
	}

	var parsed []scripture.Reference
	texts := make(map[string]bool, len(allow))
	for _, a := range allow {
		if ref, ok := scripture.Parse(a); ok {
			parsed = append(parsed, ref)
		}
		texts[scripture.Normalize(a)] = true
	}

	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if texts[scripture.Normalize(r)] {
			add(r)
			continue
		}
		ref, ok := scripture.Parse(r)
		if !ok {
			continue
		}
		for _, p := range parsed {
			if p.Equal(ref) {
				add(r)
				break
			}
		}
	}
	return out
}
