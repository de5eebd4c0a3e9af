package scripture

import (
	"fmt"
	"strconv"
	"strings"
)

// Book is one entry of the 66-book canon.
type Book struct {
	// Name is the canonical name: the normalized Spanish display name,
	// including any numeral (e.g. "1 tesalonicenses").
	Name string `json:"name"`

	// Display is the Spanish name as printed in RVR1909 (e.g. "1 Tesalonicenses").
	Display string `json:"display"`

	// English is the name used by English verse services (e.g. "1 Thessalonians").
	English string `json:"english"`

	// OSIS is the OSIS book ID (e.g. "1Thess").
	OSIS string `json:"osis"`

	// Numeral is the leading book number (0 for unnumbered books).
	Numeral int `json:"numeral,omitempty"`

	// aliases are extra unnumbered spellings, already normalized.
	aliases []string
}

// canon lists the books in canonical order. Aliases are unnumbered and
// apply to the same numeral as the entry they belong to.
var canon = []Book{
	// Old Testament
	{Display: "Génesis", English: "Genesis", OSIS: "Gen", aliases: []string{"gen", "gn"}},
	{Display: "Éxodo", English: "Exodus", OSIS: "Exod", aliases: []string{"ex", "exo", "exod"}},
	{Display: "Levítico", English: "Leviticus", OSIS: "Lev", aliases: []string{"lev", "lv"}},
	{Display: "Números", English: "Numbers", OSIS: "Num", aliases: []string{"num", "nm"}},
	{Display: "Deuteronomio", English: "Deuteronomy", OSIS: "Deut", aliases: []string{"deut", "dt"}},
	{Display: "Josué", English: "Joshua", OSIS: "Josh", aliases: []string{"jos", "josh"}},
	{Display: "Jueces", English: "Judges", OSIS: "Judg", aliases: []string{"jue", "judg"}},
	{Display: "Rut", English: "Ruth", OSIS: "Ruth", aliases: []string{"rt"}},
	{Display: "1 Samuel", English: "1 Samuel", OSIS: "1Sam", aliases: []string{"sam", "sa"}},
	{Display: "2 Samuel", English: "2 Samuel", OSIS: "2Sam", aliases: []string{"sam", "sa"}},
	{Display: "1 Reyes", English: "1 Kings", OSIS: "1Kgs", aliases: []string{"re", "rey", "kgs"}},
	{Display: "2 Reyes", English: "2 Kings", OSIS: "2Kgs", aliases: []string{"re", "rey", "kgs"}},
	{Display: "1 Crónicas", English: "1 Chronicles", OSIS: "1Chr", aliases: []string{"cr", "cro", "chr"}},
	{Display: "2 Crónicas", English: "2 Chronicles", OSIS: "2Chr", aliases: []string{"cr", "cro", "chr"}},
	{Display: "Esdras", English: "Ezra", OSIS: "Ezra", aliases: []string{"esd"}},
	{Display: "Nehemías", English: "Nehemiah", OSIS: "Neh", aliases: []string{"neh"}},
	{Display: "Ester", English: "Esther", OSIS: "Esth", aliases: []string{"est"}},
	{Display: "Job", English: "Job", OSIS: "Job"},
	{Display: "Salmos", English: "Psalms", OSIS: "Ps", aliases: []string{"salmo", "sal", "psalm", "ps"}},
	{Display: "Proverbios", English: "Proverbs", OSIS: "Prov", aliases: []string{"prov", "pr"}},
	{Display: "Eclesiastés", English: "Ecclesiastes", OSIS: "Eccl", aliases: []string{"ecl", "eccl"}},
	{Display: "Cantares", English: "Song of Solomon", OSIS: "Song", aliases: []string{"cantar de los cantares", "cnt", "song of songs"}},
	{Display: "Isaías", English: "Isaiah", OSIS: "Isa", aliases: []string{"isa"}},
	{Display: "Jeremías", English: "Jeremiah", OSIS: "Jer", aliases: []string{"jer"}},
	{Display: "Lamentaciones", English: "Lamentations", OSIS: "Lam", aliases: []string{"lam"}},
	{Display: "Ezequiel", English: "Ezekiel", OSIS: "Ezek", aliases: []string{"eze", "ezek"}},
	{Display: "Daniel", English: "Daniel", OSIS: "Dan", aliases: []string{"dan", "dn"}},
	{Display: "Oseas", English: "Hosea", OSIS: "Hos", aliases: []string{"os"}},
	{Display: "Joel", English: "Joel", OSIS: "Joel", aliases: []string{"jl"}},
	{Display: "Amós", English: "Amos", OSIS: "Amos", aliases: []string{"am"}},
	{Display: "Abdías", English: "Obadiah", OSIS: "Obad", aliases: []string{"abd"}},
	{Display: "Jonás", English: "Jonah", OSIS: "Jonah", aliases: []string{"jon"}},
	{Display: "Miqueas", English: "Micah", OSIS: "Mic", aliases: []string{"miq"}},
	{Display: "Nahúm", English: "Nahum", OSIS: "Nah", aliases: []string{"nah"}},
	{Display: "Habacuc", English: "Habakkuk", OSIS: "Hab", aliases: []string{"hab"}},
	{Display: "Sofonías", English: "Zephaniah", OSIS: "Zeph", aliases: []string{"sof"}},
	{Display: "Hageo", English: "Haggai", OSIS: "Hag", aliases: []string{"hag"}},
	{Display: "Zacarías", English: "Zechariah", OSIS: "Zech", aliases: []string{"zac"}},
	{Display: "Malaquías", English: "Malachi", OSIS: "Mal", aliases: []string{"mal"}},

	// New Testament
	{Display: "Mateo", English: "Matthew", OSIS: "Matt", aliases: []string{"mt", "mat"}},
	{Display: "Marcos", English: "Mark", OSIS: "Mark", aliases: []string{"mc", "mr"}},
	{Display: "Lucas", English: "Luke", OSIS: "Luke", aliases: []string{"lc", "luc"}},
	{Display: "Juan", English: "John", OSIS: "John", aliases: []string{"jn"}},
	{Display: "Hechos", English: "Acts", OSIS: "Acts", aliases: []string{"hch", "hech"}},
	{Display: "Romanos", English: "Romans", OSIS: "Rom", aliases: []string{"rom", "ro"}},
	{Display: "1 Corintios", English: "1 Corinthians", OSIS: "1Cor", aliases: []string{"co", "cor"}},
	{Display: "2 Corintios", English: "2 Corinthians", OSIS: "2Cor", aliases: []string{"co", "cor"}},
	{Display: "Gálatas", English: "Galatians", OSIS: "Gal", aliases: []string{"gal", "ga"}},
	{Display: "Efesios", English: "Ephesians", OSIS: "Eph", aliases: []string{"ef", "efe", "eph"}},
	{Display: "Filipenses", English: "Philippians", OSIS: "Phil", aliases: []string{"flp", "fil", "phil"}},
	{Display: "Colosenses", English: "Colossians", OSIS: "Col", aliases: []string{"col"}},
	{Display: "1 Tesalonicenses", English: "1 Thessalonians", OSIS: "1Thess", aliases: []string{"ts", "tes", "thess"}},
	{Display: "2 Tesalonicenses", English: "2 Thessalonians", OSIS: "2Thess", aliases: []string{"ts", "tes", "thess"}},
	{Display: "1 Timoteo", English: "1 Timothy", OSIS: "1Tim", aliases: []string{"ti", "tim"}},
	{Display: "2 Timoteo", English: "2 Timothy", OSIS: "2Tim", aliases: []string{"ti", "tim"}},
	{Display: "Tito", English: "Titus", OSIS: "Titus", aliases: []string{"tit"}},
	{Display: "Filemón", English: "Philemon", OSIS: "Phlm", aliases: []string{"flm", "phlm"}},
	{Display: "Hebreos", English: "Hebrews", OSIS: "Heb", aliases: []string{"heb"}},
	{Display: "Santiago", English: "James", OSIS: "Jas", aliases: []string{"stg", "sant", "jas"}},
	{Display: "1 Pedro", English: "1 Peter", OSIS: "1Pet", aliases: []string{"pe", "ped", "pet"}},
	{Display: "2 Pedro", English: "2 Peter", OSIS: "2Pet", aliases: []string{"pe", "ped", "pet"}},
	{Display: "1 Juan", English: "1 John", OSIS: "1John", aliases: []string{"jn"}},
	{Display: "2 Juan", English: "2 John", OSIS: "2John", aliases: []string{"jn"}},
	{Display: "3 Juan", English: "3 John", OSIS: "3John", aliases: []string{"jn"}},
	{Display: "Judas", English: "Jude", OSIS: "Jude", aliases: []string{"jud"}},
	{Display: "Apocalipsis", English: "Revelation", OSIS: "Rev", aliases: []string{"ap", "apoc", "rev", "revelations"}},
}

var (
	// bookIndex maps "numeral|base" to an index in canon.
	bookIndex = make(map[string]int)
	// osisIndex maps lowercased OSIS IDs to an index in canon.
	osisIndex = make(map[string]int)
	// nameIndex maps canonical names to an index in canon.
	nameIndex = make(map[string]int)
)

func init() {
	for i := range canon {
		b := &canon[i]
		b.Name = Normalize(b.Display)

		numeral, base := splitNumeral(b.Name)
		b.Numeral = numeral

		_, englishBase := splitNumeral(Normalize(b.English))

		keys := append([]string{base, englishBase}, b.aliases...)
		for _, alias := range keys {
			key := indexKey(numeral, alias)
			if j, ok := bookIndex[key]; ok && j != i {
				panic(fmt.Sprintf("scripture: alias %q for %s collides with %s", alias, b.Display, canon[j].Display))
			}
			bookIndex[key] = i
		}

		osisIndex[strings.ToLower(b.OSIS)] = i
		nameIndex[b.Name] = i
	}
}

func indexKey(numeral int, base string) string {
	return strconv.Itoa(numeral) + "|" + base
}

// splitNumeral separates a leading "N " prefix from a normalized name.
func splitNumeral(name string) (int, string) {
	if len(name) > 2 && name[0] >= '1' && name[0] <= '9' && name[1] == ' ' {
		return int(name[0] - '0'), name[2:]
	}
	return 0, name
}

// LookupBook resolves an unnumbered, normalized book spelling plus an
// optional numeral (0 for none) to a canonical book.
func LookupBook(numeral int, base string) (Book, bool) {
	i, ok := bookIndex[indexKey(numeral, Normalize(base))]
	if !ok {
		return Book{}, false
	}
	return canon[i], true
}

// ResolveBook resolves any known spelling, numeral included ("1 Tes",
// "1 Thessalonians", "Apocalipsis"), to its canonical book.
func ResolveBook(name string) (Book, bool) {
	numeral, base := splitNumeral(Normalize(name))
	return LookupBook(numeral, base)
}

// BookByName returns the book with the given canonical name.
func BookByName(name string) (Book, bool) {
	i, ok := nameIndex[Normalize(name)]
	if !ok {
		return Book{}, false
	}
	return canon[i], true
}

// BookByOSIS returns the book with the given OSIS ID (case-insensitive).
func BookByOSIS(osis string) (Book, bool) {
	i, ok := osisIndex[strings.ToLower(osis)]
	if !ok {
		return Book{}, false
	}
	return canon[i], true
}

// Books returns the canon in order. The slice is a copy.
func Books() []Book {
	out := make([]Book, len(canon))
	copy(out, canon)
	return out
}
