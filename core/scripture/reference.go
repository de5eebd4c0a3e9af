package scripture

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Reference is a parsed citation such as "1 tesalonicenses 4:16-18".
type Reference struct {
	// Book is the canonical book name (see Book.Name).
	Book string `json:"book"`

	// BookToken is the book as the user spelled it, normalized.
	BookToken string `json:"book_token"`

	Chapter    int `json:"chapter"`
	VerseStart int `json:"verse_start"`

	// VerseEnd equals VerseStart for single-verse references.
	VerseEnd int `json:"verse_end"`
}

// citation is the participle grammar for "[N ]word+ chapter:verse[-verse]".
//
//nolint:govet // participle grammar tags are not standard struct tags
type citation struct {
	Numeral  string   `@Int?`
	Words    []string `@Word+`
	Chapter  int      `@Int`
	Verse    int      `":" @Int`
	VerseEnd *int     `( "-" @Int )?`
}

var citationLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Word", Pattern: `[a-zñ]+`},
	{Name: "Punct", Pattern: `[:\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var citationParser = participle.MustBuild[citation](
	participle.Lexer(citationLexer),
	participle.Elide("Whitespace"),
)

// Parse extracts a reference from free text. It returns false when the
// text does not have the shape of a citation or names no known book;
// neither case is an error.
func Parse(s string) (Reference, bool) {
	s = strings.TrimSpace(strings.TrimRight(Normalize(s), ",;!?"))
	if s == "" {
		return Reference{}, false
	}

	c, err := citationParser.ParseString("", s)
	if err != nil {
		return Reference{}, false
	}

	numeral := 0
	if c.Numeral != "" {
		if len(c.Numeral) != 1 {
			return Reference{}, false
		}
		numeral = int(c.Numeral[0] - '0')
		if numeral == 0 {
			return Reference{}, false
		}
	}

	base := strings.Join(c.Words, " ")
	book, ok := LookupBook(numeral, base)
	if !ok {
		return Reference{}, false
	}

	end := c.Verse
	if c.VerseEnd != nil {
		end = *c.VerseEnd
	}
	if c.Chapter <= 0 || c.Verse <= 0 || end < c.Verse {
		return Reference{}, false
	}

	token := base
	if numeral > 0 {
		token = c.Numeral + " " + base
	}

	return Reference{
		Book:       book.Name,
		BookToken:  token,
		Chapter:    c.Chapter,
		VerseStart: c.Verse,
		VerseEnd:   end,
	}, true
}

// MustParse is like Parse but panics when s is not a citation.
// Intended for tests and static tables.
func MustParse(s string) Reference {
	ref, ok := Parse(s)
	if !ok {
		panic("scripture: not a citation: " + strconv.Quote(s))
	}
	return ref
}

// Format renders "{book} {chapter}:{start}" with "-{end}" appended when
// the range spans more than one verse.
func Format(book string, chapter, start, end int) string {
	var sb strings.Builder
	sb.WriteString(book)
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(chapter))
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(start))
	if end != start && end > 0 {
		sb.WriteByte('-')
		sb.WriteString(strconv.Itoa(end))
	}
	return sb.String()
}

// String returns the canonical citation text. It parses back to r.
func (r Reference) String() string {
	return Format(r.Book, r.Chapter, r.VerseStart, r.VerseEnd)
}

// Label returns the focus label used in prompts and passages.
func (r Reference) Label() string {
	return r.String()
}

// IsRange reports whether r spans more than one verse.
func (r Reference) IsRange() bool {
	return r.VerseEnd > r.VerseStart
}

// Contains reports whether chapter:verse falls inside r.
func (r Reference) Contains(chapter, verse int) bool {
	return chapter == r.Chapter && verse >= r.VerseStart && verse <= r.VerseEnd
}

// Canon returns the table entry for r.Book.
func (r Reference) Canon() (Book, bool) {
	return BookByName(r.Book)
}

// English renders r with the English book name, as expected by English
// verse services ("1 Thessalonians 4:16-18"). Unknown books fall back to
// the canonical name.
func (r Reference) English() string {
	name := r.Book
	if b, ok := r.Canon(); ok {
		name = b.English
	}
	return Format(name, r.Chapter, r.VerseStart, r.VerseEnd)
}

// Equal reports whether two references name the same book and range.
// BookToken is ignored.
func (r Reference) Equal(o Reference) bool {
	return r.Book == o.Book && r.Chapter == o.Chapter &&
		r.VerseStart == o.VerseStart && r.VerseEnd == o.VerseEnd
}
