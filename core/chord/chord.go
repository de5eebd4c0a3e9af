// Package chord turns chord symbols from a generated song into MIDI note
// numbers, so clients can play the progression back.
package chord

import (
	"strings"
)

// Tempo bounds accepted for playback.
const (
	MinTempo = 40
	MaxTempo = 240
)

// Quality is the triad or seventh type of a chord.
type Quality int

const (
	Major Quality = iota
	Minor
	Diminished
	Dominant7
	Major7
	Minor7
	Diminished7
	MinorMajor7
)

var qualityNames = map[Quality]string{
	Major:       "major",
	Minor:       "minor",
	Diminished:  "diminished",
	Dominant7:   "dominant7",
	Major7:      "major7",
	Minor7:      "minor7",
	Diminished7: "diminished7",
	MinorMajor7: "minormajor7",
}

func (q Quality) String() string {
	if s, ok := qualityNames[q]; ok {
		return s
	}
	return "unknown"
}

// MarshalText encodes the quality by name.
func (q Quality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// semitones maps root names to their offset from C.
var semitones = map[string]int{
	"C": 0, "C#": 1, "Db": 1,
	"D": 2, "D#": 3, "Eb": 3,
	"E": 4,
	"F": 5, "F#": 6, "Gb": 6,
	"G": 7, "G#": 8, "Ab": 8,
	"A": 9, "A#": 10, "Bb": 10,
	"B": 11,
}

// Chord is a parsed chord symbol. Slash basses are discarded.
type Chord struct {
	Symbol  string  `json:"symbol"`
	Root    string  `json:"root"`
	Quality Quality `json:"quality"`
}

// Parse reads a chord symbol such as "D", "F#m", "Bbmaj7", "A7/C#" or
// "(Em7)". It returns false for text that does not start with a note name.
func Parse(symbol string) (Chord, bool) {
	s := strings.NewReplacer("(", "", ")", "").Replace(strings.TrimSpace(symbol))
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	s = strings.Join(strings.Fields(s), "")

	if s == "" || s[0] < 'A' || s[0] > 'G' {
		return Chord{}, false
	}

	root := s[:1]
	rest := s[1:]
	if len(rest) > 0 && (rest[0] == '#' || rest[0] == 'b') {
		root += rest[:1]
		rest = rest[1:]
	}
	if _, ok := semitones[root]; !ok {
		return Chord{}, false
	}

	return Chord{
		Symbol:  strings.TrimSpace(symbol),
		Root:    root,
		Quality: quality(strings.ToLower(rest)),
	}, true
}

// quality classifies the lowercased remainder of a chord symbol.
func quality(rest string) Quality {
	dim := strings.Contains(rest, "dim") || strings.Contains(rest, "°")
	minor := strings.HasPrefix(rest, "m") && !strings.HasPrefix(rest, "maj")
	seventh := strings.Contains(rest, "7")

	switch {
	case minor && strings.Contains(rest, "maj7"):
		return MinorMajor7
	case strings.Contains(rest, "maj7"):
		return Major7
	case dim && seventh:
		return Diminished7
	case dim:
		return Diminished
	case minor && seventh:
		return Minor7
	case minor:
		return Minor
	case seventh:
		return Dominant7
	}
	return Major
}

// intervals returns the chord tones in semitones above the root.
func (c Chord) intervals() []int {
	switch c.Quality {
	case Minor:
		return []int{0, 3, 7}
	case Diminished:
		return []int{0, 3, 6}
	case Dominant7:
		return []int{0, 4, 7, 10}
	case Major7:
		return []int{0, 4, 7, 11}
	case Minor7:
		return []int{0, 3, 7, 10}
	case Diminished7:
		return []int{0, 3, 6, 10}
	case MinorMajor7:
		return []int{0, 3, 7, 11}
	}
	return []int{0, 4, 7}
}

// Pitches returns the MIDI note numbers of the chord in root position with
// the root in the given octave (C4 = 60).
func (c Chord) Pitches(octave int) []int {
	base := 12*(octave+1) + semitones[c.Root]
	iv := c.intervals()
	notes := make([]int, len(iv))
	for i, n := range iv {
		notes[i] = base + n
	}
	return notes
}

// ProgressionPitches converts chord lines to note groups. Each line is read
// up to its first '-' ("G - Cantamos al Rey" plays G). Lines that do not
// start with a chord are skipped.
func ProgressionPitches(lines []string, octave int) [][]int {
	var out [][]int
	for _, line := range lines {
		for _, piece := range strings.Split(line, "-") {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			if c, ok := Parse(piece); ok {
				out = append(out, c.Pitches(octave))
			}
			break
		}
	}
	return out
}

// ClampTempo limits bpm to [MinTempo, MaxTempo].
func ClampTempo(bpm int) int {
	return max(MinTempo, min(MaxTempo, bpm))
}
