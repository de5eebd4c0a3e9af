package verses

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/VocesDelReino/core/errors"
	"github.com/FocuswithJustin/VocesDelReino/core/scripture"
)

// Store is an immutable, in-memory translation. All methods are safe for
// concurrent use.
type Store struct {
	translation string
	verses      []Verse

	// Per-verse caches, index-aligned with verses.
	books []string // normalized book as stored
	canon []string // canonical book name, "" when the book is unknown
	texts []string // normalized text
}

// New builds a Store. vs is copied; the caller may reuse it.
func New(translation string, vs []Verse) *Store {
	s := &Store{
		translation: translation,
		verses:      make([]Verse, len(vs)),
		books:       make([]string, len(vs)),
		canon:       make([]string, len(vs)),
		texts:       make([]string, len(vs)),
	}
	copy(s.verses, vs)

	resolved := make(map[string]string)
	for i, v := range s.verses {
		book := scripture.Normalize(v.Book)
		s.books[i] = book
		s.texts[i] = scripture.Normalize(v.Text)

		name, ok := resolved[book]
		if !ok {
			if b, found := scripture.ResolveBook(book); found {
				name = b.Name
			}
			resolved[book] = name
		}
		s.canon[i] = name
	}
	return s
}

// Validate rejects datasets with an empty book, a non-positive chapter or
// verse number, or a repeated (book, chapter, verse) key.
func Validate(vs []Verse) error {
	seen := make(map[string]struct{}, len(vs))
	for i, v := range vs {
		if strings.TrimSpace(v.Book) == "" {
			return errors.NewValidation("book", fmt.Sprintf("verse %d has an empty book", i))
		}
		if v.Chapter <= 0 || v.Number <= 0 {
			return errors.NewValidation("verse", fmt.Sprintf("%s %d:%d has a non-positive chapter or verse", v.Book, v.Chapter, v.Number))
		}
		key := scripture.Normalize(v.Book) + "|" + strconv.Itoa(v.Chapter) + "|" + strconv.Itoa(v.Number)
		if _, dup := seen[key]; dup {
			return errors.NewValidation("verse", fmt.Sprintf("duplicate verse %s", v.Label()))
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Translation returns the translation label, e.g. "RVR1909".
func (s *Store) Translation() string {
	return s.translation
}

// Len returns the number of verses.
func (s *Store) Len() int {
	return len(s.verses)
}

// Verses returns a copy of all verses in dataset order.
func (s *Store) Verses() []Verse {
	out := make([]Verse, len(s.verses))
	copy(out, s.verses)
	return out
}

// Lookup returns the verses of ref in ascending verse order.
//
// A verse belongs to the book when its normalized stored book contains the
// reference's book, or resolves to the same canonical book. This is
// narrower than a plain substring match in one case: when some of those
// verses name the book exactly, the substring-only ones are dropped so
// "juan" does not pick up "1 juan". With no exact match the substring
// matches are returned as they are.
func (s *Store) Lookup(ref scripture.Reference) (*Passage, bool) {
	query := scripture.Normalize(ref.Book)
	if query == "" {
		return nil, false
	}

	var loose, exact []Verse
	for i, v := range s.verses {
		if !ref.Contains(v.Chapter, v.Number) {
			continue
		}
		isExact := s.books[i] == query || s.canon[i] == query
		if !isExact && !strings.Contains(s.books[i], query) {
			continue
		}
		loose = append(loose, v)
		if isExact {
			exact = append(exact, v)
		}
	}

	found := loose
	if len(exact) > 0 {
		found = exact
	}
	if len(found) == 0 {
		return nil, false
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Number < found[j].Number
	})
	return NewPassage(ref, s.translation, found), true
}

// Digest returns the hex BLAKE3 hash of the translation label and verses in
// dataset order. Equal datasets hash equally regardless of source format.
func (s *Store) Digest() string {
	h := blake3.New()
	h.Write([]byte(s.translation))
	h.Write([]byte{'\n'})
	for _, v := range s.verses {
		fmt.Fprintf(h, "%s\t%d\t%d\t%s\n", v.Book, v.Chapter, v.Number, v.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}
