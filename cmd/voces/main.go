// Command voces generates scripture-anchored worship songs and serves the
// Voces del Reino HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/VocesDelReino/core/chord"
	"github.com/FocuswithJustin/VocesDelReino/core/errors"
	"github.com/FocuswithJustin/VocesDelReino/core/scripture"
	"github.com/FocuswithJustin/VocesDelReino/core/verses"
	"github.com/FocuswithJustin/VocesDelReino/internal/api"
	"github.com/FocuswithJustin/VocesDelReino/internal/config"
	"github.com/FocuswithJustin/VocesDelReino/internal/library"
	"github.com/FocuswithJustin/VocesDelReino/internal/logging"
	"github.com/FocuswithJustin/VocesDelReino/internal/song"
)

const version = "0.1.0"

// Command output goes to out and progress to errOut.
var (
	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr
)

// CLI defines the command-line interface for voces.
var CLI struct {
	ConfigFile string `name:"config-file" short:"c" help:"Configuration file" default:"voces.yaml" type:"path"`

	Serve    ServeCmd     `cmd:"" help:"Start the HTTP API server"`
	Lookup   LookupCmd    `cmd:"" help:"Print the passage for a reference"`
	Search   SearchCmd    `cmd:"" help:"Keyword-search the verse dataset"`
	Parse    ParseCmd     `cmd:"" help:"Parse a scripture reference"`
	Generate GenerateCmd  `cmd:"" help:"Generate a song"`
	Chords   ChordsCmd    `cmd:"" help:"Convert chord lines to MIDI pitches"`
	Dataset  DatasetGroup `cmd:"" help:"Verse dataset operations"`
	Config   ConfigGroup  `cmd:"" help:"Configuration file operations"`
	Version  VersionCmd   `cmd:"" help:"Print version information"`
}

// DatasetGroup contains dataset operations.
type DatasetGroup struct {
	Info   DatasetInfoCmd   `cmd:"" help:"Show the configured dataset"`
	Import DatasetImportCmd `cmd:"" help:"Convert a dataset to JSON, .json.xz or SQLite"`
}

// ConfigGroup contains configuration operations.
type ConfigGroup struct {
	Init ConfigInitCmd `cmd:"" help:"Write the default configuration"`
}

// loadConfig reads CLI.ConfigFile and validates the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initCLILogging logs to stderr so command output stays parseable. Dataset
// load messages are informational and hidden unless debug is asked for.
func initCLILogging(cfg *config.Config) {
	level := cfg.LogLevel()
	if level != logging.LevelDebug {
		level = max(level, logging.LevelWarn)
	}
	logging.InitLoggerWriter(errOut, level, logging.FormatText)
}

func printJSON(v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Port       int    `help:"HTTP server port (overrides config)"`
	Dataset    string `help:"Verse dataset path (overrides config)" type:"path"`
	Backend    string `help:"Scripture backend: dataset or network (overrides config)"`
	Completion string `help:"Completion backend: openai, gemini or mock (overrides config)"`
}

func (c *ServeCmd) apply(cfg *config.Config) {
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.Dataset != "" {
		cfg.Scripture.Dataset = c.Dataset
	}
	if c.Backend != "" {
		cfg.Scripture.Backend = c.Backend
	}
	if c.Completion != "" {
		cfg.Completion.Backend = c.Completion
	}
}

func (c *ServeCmd) Run(ctx context.Context) error {
	cfg, err := config.Load(CLI.ConfigFile)
	if err != nil {
		return err
	}
	c.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logging.InitLogger(cfg.LogLevel(), cfg.LogFormat())

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := a.newServer()
	if err != nil {
		return err
	}
	defer srv.Close()

	if cfg.Completion.APIKey == "" && cfg.Completion.Backend != config.CompletionMock {
		logging.Warn("completion API key not set; generation will fail",
			"backend", cfg.Completion.Backend)
	}
	return srv.ListenAndServe(ctx)
}

// LookupCmd prints the passage for a reference.
type LookupCmd struct {
	Reference []string `arg:"" help:"Reference, e.g. \"Juan 3:16\""`
	JSON      bool     `help:"Print the passage as JSON"`
}

func (c *LookupCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initCLILogging(cfg)

	input := strings.Join(c.Reference, " ")
	ref, ok := scripture.Parse(input)
	if !ok {
		return errors.NewValidation("reference", fmt.Sprintf("cannot parse %q", input))
	}

	store := newStore(cfg)
	lookup, _ := newLookup(cfg, store)
	p, err := lookup.Lookup(ctx, ref)
	if err != nil {
		return err
	}
	if p == nil {
		return errors.NewNotFound("passage", ref.Label())
	}

	if c.JSON {
		return printJSON(p)
	}
	fmt.Fprintf(out, "%s (%s)\n%s\n", ref.Label(), p.Translation, p.Text)
	return nil
}

// SearchCmd keyword-searches the dataset.
type SearchCmd struct {
	Query []string `arg:"" help:"Search words"`
	Limit int      `help:"Maximum results" default:"10"`
	JSON  bool     `help:"Print matches as JSON"`
}

func (c *SearchCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initCLILogging(cfg)

	if c.Limit < 1 {
		return errors.NewValidation("limit", "must be at least 1")
	}

	store := newStore(cfg)
	if err := store.Err(); err != nil {
		return fmt.Errorf("dataset unavailable: %w", err)
	}
	matches := store.Search(strings.Join(c.Query, " "), c.Limit)

	if c.JSON {
		if matches == nil {
			matches = []verses.Match{}
		}
		return printJSON(matches)
	}
	if len(matches) == 0 {
		fmt.Fprintln(out, "No matches")
		return nil
	}
	fmt.Fprintln(out, verses.FormatMatches(matches))
	return nil
}

// ParseCmd parses a reference and prints its parts.
type ParseCmd struct {
	Reference []string `arg:"" help:"Reference to parse"`
}

func (c *ParseCmd) Run() error {
	input := strings.Join(c.Reference, " ")
	ref, ok := scripture.Parse(input)
	if !ok {
		return errors.NewValidation("reference", fmt.Sprintf("cannot parse %q", input))
	}
	return printJSON(api.ParseResult{Reference: ref, Label: ref.Label(), English: ref.English()})
}

// GenerateCmd generates one song.
type GenerateCmd struct {
	Scripture     string   `short:"s" help:"Scripture focus, e.g. \"1 Tesalonicenses 4:16-18\""`
	Topic         string   `short:"t" help:"Topic or theme"`
	Title         string   `help:"Working title"`
	Language      string   `short:"l" help:"Lyrics language (es or en)"`
	Style         string   `help:"Musical style"`
	Key           string   `short:"k" help:"Key, e.g. D or F#"`
	Mode          string   `help:"major or minor"`
	MinorType     string   `help:"natural, harmonic or melodic"`
	Tempo         int      `help:"Tempo in BPM"`
	TimeSignature string   `help:"4/4, 3/4 or 6/8"`
	Prompt        string   `short:"p" help:"Extra instructions"`
	Previous      []string `help:"Lyrics of earlier songs to avoid repeating"`
	Completion    string   `help:"Completion backend (overrides config)"`
	JSON          bool     `help:"Print the result as JSON"`
	Save          bool     `help:"Save the song to the library"`
}

func (c *GenerateCmd) request() song.Request {
	req := song.Request{
		Language:       c.Language,
		Title:          c.Title,
		Topic:          c.Topic,
		Style:          c.Style,
		Key:            c.Key,
		Mode:           c.Mode,
		MinorType:      c.MinorType,
		Tempo:          c.Tempo,
		TimeSignature:  c.TimeSignature,
		Prompt:         c.Prompt,
		PreviousLyrics: c.Previous,
		ScriptureFocus: c.Scripture,
	}
	req.Normalize()
	return req
}

func (c *GenerateCmd) Run(ctx context.Context) error {
	cfg, err := config.Load(CLI.ConfigFile)
	if err != nil {
		return err
	}
	if c.Completion != "" {
		cfg.Completion.Backend = c.Completion
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	initCLILogging(cfg)

	req := c.request()
	if err := req.Validate(); err != nil {
		return err
	}

	store := newStore(cfg)
	lookup, _ := newLookup(cfg, store)
	gen, err := newGenerator(ctx, cfg, store, lookup, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.GetRequestTimeout())
	defer cancel()

	res, err := gen.GenerateWithProgress(ctx, req, func(p song.Progress) {
		fmt.Fprintf(errOut, "[%3d%%] %s\n", p.Percent, p.Stage)
	})
	if err != nil {
		return err
	}

	if c.Save {
		lib, err := openLibrary(ctx, cfg)
		if err != nil {
			return err
		}
		if lib == nil {
			return fmt.Errorf("library is disabled (library.path is empty)")
		}
		defer lib.Close()
		saved, err := lib.Add(ctx, library.Song{Request: req, Draft: res.Draft})
		if err != nil {
			return err
		}
		fmt.Fprintf(errOut, "Saved as %s\n", saved.ID)
	}

	if c.JSON {
		return printJSON(res)
	}
	printDraft(res)
	return nil
}

func printDraft(res *song.Result) {
	d := res.Draft
	fmt.Fprintln(out, d.Title)
	fmt.Fprintln(out, strings.Repeat("=", len([]rune(d.Title))))
	fmt.Fprintf(out, "Key: %s  Tempo: %d  Time: %s\n", d.Key, d.Tempo, d.TimeSignature)
	if d.ScriptureFocus != "" {
		fmt.Fprintf(out, "Focus: %s\n", d.ScriptureFocus)
	}
	if len(d.Chords) > 0 {
		fmt.Fprintln(out)
		for _, line := range d.Chords {
			fmt.Fprintln(out, line)
		}
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, d.Lyrics)
	if len(d.BibleReferences) > 0 {
		fmt.Fprintf(out, "\nReferences: %s\n", strings.Join(d.BibleReferences, "; "))
	}
}

// ChordsCmd converts chord lines to MIDI pitches.
type ChordsCmd struct {
	Lines  []string `arg:"" help:"Chord lines, e.g. \"D A Bm G\""`
	Octave int      `help:"Octave of the chord roots" default:"4"`
}

func (c *ChordsCmd) Run() error {
	if c.Octave < 0 || c.Octave > 8 {
		return errors.NewValidation("octave", "must be between 0 and 8")
	}
	pitches := chord.ProgressionPitches(c.Lines, c.Octave)
	if pitches == nil {
		pitches = [][]int{}
	}
	return printJSON(pitches)
}

// DatasetInfoCmd reports the configured dataset.
type DatasetInfoCmd struct {
	Path string `arg:"" optional:"" help:"Dataset file (default: configured dataset)" type:"path"`
}

func (c *DatasetInfoCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initCLILogging(cfg)
	if c.Path != "" {
		cfg.Scripture.Dataset = c.Path
	}

	store := newStore(cfg)
	if err := store.Err(); err != nil {
		return fmt.Errorf("dataset unavailable: %w", err)
	}
	s := store.Store()

	source := cfg.Scripture.Dataset
	if source == "" {
		source = "(bundled)"
	}
	fmt.Fprintf(out, "Source:       %s\n", source)
	fmt.Fprintf(out, "Translation:  %s\n", s.Translation())
	fmt.Fprintf(out, "Verses:       %d\n", s.Len())
	fmt.Fprintf(out, "Digest:       %s\n", s.Digest())
	fmt.Fprintf(out, "Backend:      %s\n", cfg.Scripture.Backend)
	return nil
}

// DatasetImportCmd converts a dataset file.
type DatasetImportCmd struct {
	Source string `arg:"" help:"Source dataset (.json, .json.xz, .xml, .osis, .db)" type:"existingfile"`
	Out    string `required:"" help:"Output path (.json, .json.xz, .db, .sqlite)" type:"path"`
	Force  bool   `help:"Overwrite an existing output file"`
}

func (c *DatasetImportCmd) Run(ctx context.Context) error {
	if _, err := os.Stat(c.Out); err == nil && !c.Force {
		return fmt.Errorf("%s exists (use --force to overwrite)", c.Out)
	}

	s, err := verses.LoadFile(c.Source)
	if err != nil {
		return err
	}
	if err := verses.WriteFile(ctx, c.Out, s); err != nil {
		return err
	}
	fmt.Fprintf(out, "Imported %d verses (%s) to %s\n", s.Len(), s.Translation(), c.Out)
	return nil
}

// ConfigInitCmd writes the default configuration.
type ConfigInitCmd struct {
	Force bool `help:"Overwrite an existing file"`
}

func (c *ConfigInitCmd) Run() error {
	path := CLI.ConfigFile
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%s exists (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintf(out, "voces version %s\n", version)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx := kong.Parse(&CLI,
		kong.Name("voces"),
		kong.Description("Voces del Reino - scripture-anchored worship song generation"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	err := kctx.Run()
	kctx.FatalIfErrorf(err)
}
