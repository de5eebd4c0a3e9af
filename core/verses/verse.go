// Package verses holds an in-memory Bible translation and answers exact
// range lookups and keyword searches against it.
//
// A Store is immutable once built and safe for concurrent use. LazyStore
// defers loading the dataset to first use.
package verses

import (
	"strconv"
	"strings"

	"github.com/FocuswithJustin/VocesDelReino/core/scripture"
)

// Verse is one verse of a translation. (Book, Chapter, Number) is unique
// within a Store.
type Verse struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Number  int    `json:"verse"`
	Text    string `json:"text"`
}

// Label returns "{book} {chapter}:{verse}".
func (v Verse) Label() string {
	return scripture.Format(v.Book, v.Chapter, v.Number, v.Number)
}

// Match is a keyword search hit. Score counts the query words found in the
// verse text, a repeated word once per occurrence in the query.
type Match struct {
	Verse
	Score int `json:"score"`
}

// Passage is the result of an exact lookup.
type Passage struct {
	// Reference is the focus label "{book} {chapter}:{start}[-{end}]"
	// with the canonical book name.
	Reference string `json:"reference"`

	// Text holds one "{n}. {text}" line per verse.
	Text string `json:"text"`

	Verses      []Verse `json:"verses"`
	Translation string  `json:"translation"`
}

// NewPassage builds a Passage for ref from verses already sorted by number.
func NewPassage(ref scripture.Reference, translation string, vs []Verse) *Passage {
	lines := make([]string, len(vs))
	for i, v := range vs {
		lines[i] = strconv.Itoa(v.Number) + ". " + v.Text
	}

	return &Passage{
		Reference:   ref.Label(),
		Text:        strings.Join(lines, "\n"),
		Verses:      vs,
		Translation: translation,
	}
}
