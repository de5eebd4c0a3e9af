package verses

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/VocesDelReino/core/errors"
)

//go:embed data/rvr1909.json
var embeddedData embed.FS

// EmbeddedTranslation is the label of the bundled dataset.
const EmbeddedTranslation = "RVR1909"

// document is the JSON dataset envelope. Datasets may also be a bare array
// of verses.
type document struct {
	Version string  `json:"version"`
	Verses  []Verse `json:"verses"`
}

// Embedded loads the bundled Reina-Valera 1909 sample.
func Embedded() (*Store, error) {
	f, err := embeddedData.Open("data/rvr1909.json")
	if err != nil {
		return nil, errors.NewIO("open", "embedded rvr1909.json", err)
	}
	defer f.Close()
	return LoadJSON(f, EmbeddedTranslation)
}

// LoadJSON reads a JSON dataset. fallbackTranslation labels datasets whose
// envelope has no version, and bare arrays.
func LoadJSON(r io.Reader, fallbackTranslation string) (*Store, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIO("read", "", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.NewParse("JSON", "", "empty dataset")
	}

	var doc document
	if data[0] == '[' {
		err = json.Unmarshal(data, &doc.Verses)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, &errors.ParseError{Format: "JSON", Message: err.Error(), Err: err}
	}

	translation := doc.Version
	if translation == "" {
		translation = fallbackTranslation
	}
	return build(translation, doc.Verses)
}

// build validates vs and wraps them in a Store.
func build(translation string, vs []Verse) (*Store, error) {
	if len(vs) == 0 {
		return nil, errors.NewParse("dataset", "", "no verses")
	}
	if err := Validate(vs); err != nil {
		return nil, err
	}
	return New(translation, vs), nil
}

// LoadFile loads a dataset by extension: .json, .json.xz, .xml or .osis
// (OSIS), .db, .sqlite or .sqlite3. The translation label defaults to the
// file name without extensions, upper-cased.
func LoadFile(path string) (*Store, error) {
	name := strings.ToLower(filepath.Base(path))
	fallback := translationFromName(name)

	switch {
	case strings.HasSuffix(name, ".json.xz"):
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.NewIO("open", path, err)
		}
		defer f.Close()
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, errors.NewIO("decompress", path, err)
		}
		return LoadJSON(xr, fallback)

	case strings.HasSuffix(name, ".json"):
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.NewIO("open", path, err)
		}
		defer f.Close()
		return LoadJSON(f, fallback)

	case strings.HasSuffix(name, ".xml"), strings.HasSuffix(name, ".osis"):
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.NewIO("open", path, err)
		}
		defer f.Close()
		return LoadOSIS(f, fallback)

	case strings.HasSuffix(name, ".db"), strings.HasSuffix(name, ".sqlite"), strings.HasSuffix(name, ".sqlite3"):
		return LoadSQLite(context.Background(), path)
	}

	return nil, errors.NewUnsupported("dataset format", filepath.Ext(name))
}

// FileLoader returns a Loader for LoadFile(path). An empty path selects the
// embedded dataset.
func FileLoader(path string) Loader {
	if path == "" {
		return Embedded
	}
	return func() (*Store, error) { return LoadFile(path) }
}

func translationFromName(name string) string {
	name = filepath.Base(name)
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return strings.ToUpper(name)
}

// WriteJSON writes s as a versioned JSON document.
func WriteJSON(w io.Writer, s *Store) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(document{Version: s.Translation(), Verses: s.verses})
}

// WriteFile writes s to path in the format implied by its extension
// (.json, .json.xz, .db, .sqlite or .sqlite3).
func WriteFile(ctx context.Context, path string, s *Store) error {
	name := strings.ToLower(filepath.Base(path))

	switch {
	case strings.HasSuffix(name, ".db"), strings.HasSuffix(name, ".sqlite"), strings.HasSuffix(name, ".sqlite3"):
		return WriteSQLite(ctx, path, s)
	case strings.HasSuffix(name, ".json.xz"), strings.HasSuffix(name, ".json"):
	default:
		return errors.NewUnsupported("dataset output", filepath.Ext(name))
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.NewIO("create", path, err)
	}
	defer f.Close()

	if !strings.HasSuffix(name, ".xz") {
		if err := WriteJSON(f, s); err != nil {
			return errors.NewIO("write", path, err)
		}
		return f.Close()
	}

	xw, err := xz.NewWriter(f)
	if err != nil {
		return errors.NewIO("compress", path, err)
	}
	if err := WriteJSON(xw, s); err != nil {
		return errors.NewIO("write", path, err)
	}
	if err := xw.Close(); err != nil {
		return errors.NewIO("compress", path, err)
	}
	return f.Close()
}
