package verses

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/FocuswithJustin/VocesDelReino/core/scripture"
)

const (
	// DefaultSearchLimit is used when Search is called with limit <= 0.
	DefaultSearchLimit = 10

	// minQueryRunes is the shortest query and the shortest word considered.
	minQueryRunes = 3
)

// Search ranks verses by how many query words of three or more letters
// appear in their text, counting a repeated query word once per repetition. Verses matching no word are dropped; ties
// keep dataset order. Queries shorter than three characters return nothing.
func (s *Store) Search(query string, limit int) []Match {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	words := queryWords(query)
	if len(words) == 0 {
		return nil
	}

	var matches []Match
	for i, v := range s.verses {
		score := 0
		for _, w := range words {
			if strings.Contains(s.texts[i], w) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, Match{Verse: v, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// queryWords returns the searchable words of a query in order, repeats
// included.
func queryWords(query string) []string {
	q := scripture.Normalize(query)
	if utf8.RuneCountInString(q) < minQueryRunes {
		return nil
	}

	var words []string
	for _, w := range scripture.Words(q) {
		if utf8.RuneCountInString(w) >= minQueryRunes {
			words = append(words, w)
		}
	}
	return words
}

// FocusFromMatches returns the label of the best match, or "" when there
// are none.
func FocusFromMatches(matches []Match) string {
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Label()
}

// FormatMatches renders matches as a prompt block, one "- {label} {text}"
// line each, or "NONE" when empty.
func FormatMatches(matches []Match) string {
	if len(matches) == 0 {
		return "NONE"
	}

	lines := make([]string, len(matches))
	for i, m := range matches {
		lines[i] = "- " + m.Label() + " " + m.Text
	}
	return strings.Join(lines, "\n")
}
