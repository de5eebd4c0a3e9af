package verses

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/VocesDelReino/core/errors"
	"github.com/FocuswithJustin/VocesDelReino/core/scripture"
)

var (
	osisTitleExpr     = xpath.MustCompile(`//header/work/title`)
	osisWorkExpr      = xpath.MustCompile(`//osisText[@osisIDWork]`)
	osisContainerExpr = xpath.MustCompile(`//verse[@osisID and not(@sID) and not(@eID)]`)
	osisMilestoneExpr = xpath.MustCompile(`//verse[@sID]`)
)

// LoadOSIS reads an OSIS XML document. Both container verses
// (<verse osisID="John.3.16">...</verse>) and sibling milestones
// (<verse sID=".."/>...<verse eID=".."/>) are supported. Books are stored
// under their Spanish display names.
func LoadOSIS(r io.Reader, fallbackTranslation string) (*Store, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, &errors.ParseError{Format: "OSIS", Message: err.Error(), Err: err}
	}

	translation := fallbackTranslation
	if n := xmlquery.QuerySelector(doc, osisTitleExpr); n != nil && strings.TrimSpace(n.InnerText()) != "" {
		translation = strings.TrimSpace(n.InnerText())
	} else if n := xmlquery.QuerySelector(doc, osisWorkExpr); n != nil {
		translation = n.SelectAttr("osisIDWork")
	}

	var vs []Verse
	for _, n := range xmlquery.QuerySelectorAll(doc, osisContainerExpr) {
		v, err := osisVerse(n.SelectAttr("osisID"), n.InnerText())
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}

	for _, start := range xmlquery.QuerySelectorAll(doc, osisMilestoneExpr) {
		id := start.SelectAttr("sID")
		var sb strings.Builder
		for n := start.NextSibling; n != nil; n = n.NextSibling {
			if n.Type == xmlquery.ElementNode && n.Data == "verse" && n.SelectAttr("eID") == id {
				break
			}
			sb.WriteString(n.InnerText())
		}

		osisID := start.SelectAttr("osisID")
		if osisID == "" {
			osisID = id
		}
		v, err := osisVerse(osisID, sb.String())
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}

	return build(translation, vs)
}

// osisVerse converts "Book.Chapter.Verse" plus text to a Verse. Only the
// first ID of a space-separated list is used.
func osisVerse(osisID, text string) (Verse, error) {
	if fields := strings.Fields(osisID); len(fields) > 0 {
		osisID = fields[0]
	}

	parts := strings.Split(osisID, ".")
	if len(parts) != 3 {
		return Verse{}, errors.NewParse("OSIS", "", fmt.Sprintf("malformed osisID %q", osisID))
	}

	book, ok := scripture.BookByOSIS(parts[0])
	if !ok {
		return Verse{}, errors.NewParse("OSIS", "", fmt.Sprintf("unknown book %q", parts[0]))
	}
	chapter, err1 := strconv.Atoi(parts[1])
	number, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return Verse{}, errors.NewParse("OSIS", "", fmt.Sprintf("malformed osisID %q", osisID))
	}

	return Verse{
		Book:    book.Display,
		Chapter: chapter,
		Number:  number,
		Text:    strings.Join(strings.Fields(text), " "),
	}, nil
}
