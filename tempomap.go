package taktell

import (
	"fmt"
	"strconv"
	"strings"
)

// BeatType classifies a single click.
type BeatType int

const (
	BeatEmphasis BeatType = iota + 1
	BeatNormal
	BeatSilent
)

// BarsInfinite as the bar count of an entry means the entry plays forever.
// Only the last entry of a map may use it.
const BarsInfinite = -1

type (
	// Entry is one section of a tempo map: a number of bars in a fixed meter,
	// with either a constant tempo, a linear tempo change over the whole
	// section, or a separate tempo for every beat.
	Entry struct {
		Label  string
		Bars   int       // number of bars, or BarsInfinite
		Tempo  float64   // BPM; zero if Tempi is used instead
		Tempo2 float64   // ramp target BPM; zero (or equal to Tempo) if constant
		Tempi  []float64 // per-beat BPM, length Bars*Beats; empty unless Tempo is zero
		Beats  int       // meter numerator
		Denom  int       // meter denominator
		// Pattern holds one BeatType per beat of a bar. Empty means the
		// default accents: emphasis on the first beat, normal elsewhere.
		Pattern []BeatType
		Volume  float64 // in [0, 1]
	}

	// TempoMap is an ordered program of entries. Maps are built by the
	// parsers, NewSimple or Join, and are never modified afterwards, so they
	// can be shared freely between goroutines.
	TempoMap struct {
		Entries []Entry
	}
)

// NumBeats returns the total number of beats in the entry, or BarsInfinite
// for an infinite entry.
func (e *Entry) NumBeats() int {
	if e.Bars == BarsInfinite {
		return BarsInfinite
	}
	return e.Bars * e.Beats
}

// TempoAt returns the tempo at beat index k of the entry. For a ramp this is
// the linearly interpolated instantaneous tempo; for per-beat tempi the tempo
// of beat k.
func (e *Entry) TempoAt(k int) float64 {
	switch {
	case e.Tempo == 0:
		if k >= len(e.Tempi) {
			k = len(e.Tempi) - 1
		}
		return e.Tempi[k]
	case e.Tempo2 == 0 || e.Tempo2 == e.Tempo:
		return e.Tempo
	default:
		return e.Tempo + (e.Tempo2-e.Tempo)*float64(k)/float64(e.NumBeats())
	}
}

// Copy makes a deep copy of an Entry.
func (e *Entry) Copy() Entry {
	ret := *e
	ret.Tempi = append([]float64(nil), e.Tempi...)
	ret.Pattern = append([]BeatType(nil), e.Pattern...)
	return ret
}

// Copy makes a deep copy of a TempoMap.
func (m TempoMap) Copy() TempoMap {
	entries := make([]Entry, len(m.Entries))
	for i := range m.Entries {
		entries[i] = m.Entries[i].Copy()
	}
	return TempoMap{Entries: entries}
}

// NewSimple builds a single-entry map, used for prerolls and command line
// tempos. pattern may be nil for the default accents; volume 1 is the neutral
// gain. The arguments are not validated; call Validate if they come from the
// outside.
func NewSimple(bars int, tempo float64, beats, denom int, pattern []BeatType, volume float64) TempoMap {
	return TempoMap{Entries: []Entry{{
		Bars:    bars,
		Tempo:   tempo,
		Beats:   beats,
		Denom:   denom,
		Pattern: append([]BeatType(nil), pattern...),
		Volume:  volume,
	}}}
}

// Join concatenates two maps into a new one. The first map must not end in an
// infinite entry, and labels must stay unique across the result.
func Join(a, b TempoMap) (TempoMap, error) {
	if len(a.Entries) > 0 && a.Entries[len(a.Entries)-1].Bars == BarsInfinite {
		return TempoMap{}, &JoinError{Reason: "first map ends in an infinite entry"}
	}
	ret := TempoMap{Entries: make([]Entry, 0, len(a.Entries)+len(b.Entries))}
	for i := range a.Entries {
		ret.Entries = append(ret.Entries, a.Entries[i].Copy())
	}
	for i := range b.Entries {
		ret.Entries = append(ret.Entries, b.Entries[i].Copy())
	}
	if err := ret.Validate(); err != nil {
		return TempoMap{}, err
	}
	return ret, nil
}

// IndexOfLabel returns the index of the first entry with the given label, or
// -1 if there is none.
func (m TempoMap) IndexOfLabel(label string) int {
	if label == "" {
		return -1
	}
	for i := range m.Entries {
		if m.Entries[i].Label == label {
			return i
		}
	}
	return -1
}

// EntryByLabel returns the first entry with the given label.
func (m TempoMap) EntryByLabel(label string) (Entry, bool) {
	if i := m.IndexOfLabel(label); i >= 0 {
		return m.Entries[i], true
	}
	return Entry{}, false
}

// Validate checks the map invariants: at least one entry, only the last entry
// infinite, positive tempi, meters and volumes in range, pattern and per-beat
// list lengths consistent, labels unique.
func (m TempoMap) Validate() error {
	if len(m.Entries) == 0 {
		return &ValidationError{Reason: "map has no entries"}
	}
	labels := make(map[string]bool)
	for i := range m.Entries {
		e := &m.Entries[i]
		if e.Label != "" {
			if labels[e.Label] {
				return &ValidationError{Reason: fmt.Sprintf("duplicate label %q", e.Label)}
			}
			labels[e.Label] = true
		}
		if e.Bars == BarsInfinite && i != len(m.Entries)-1 {
			return &ValidationError{Reason: "infinite bar count on a non-final entry"}
		}
		if e.Bars != BarsInfinite && e.Bars < 1 {
			return &ValidationError{Reason: "bar count must be positive"}
		}
		if e.Beats < 1 || e.Denom < 1 {
			return &ValidationError{Reason: "meter must be positive"}
		}
		if e.Tempo == 0 {
			if e.Bars == BarsInfinite {
				return &ValidationError{Reason: "per-beat tempi need a finite bar count"}
			}
			if len(e.Tempi) != e.Bars*e.Beats {
				return &ValidationError{Reason: fmt.Sprintf("per-beat tempo list has %d values, need bars*beats = %d", len(e.Tempi), e.Bars*e.Beats)}
			}
			for _, t := range e.Tempi {
				if t <= 0 {
					return &ValidationError{Reason: "per-beat tempo must be positive"}
				}
			}
		} else {
			if e.Tempo < 0 {
				return &ValidationError{Reason: "tempo must be positive"}
			}
			if e.Tempo2 < 0 {
				return &ValidationError{Reason: "ramp target tempo must be positive"}
			}
			if e.Tempo2 != 0 && e.Tempo2 != e.Tempo && e.Bars == BarsInfinite {
				return &ValidationError{Reason: "tempo ramp needs a finite bar count"}
			}
			if len(e.Tempi) != 0 {
				return &ValidationError{Reason: "per-beat tempi given together with a fixed tempo"}
			}
		}
		if len(e.Pattern) != 0 && len(e.Pattern) != e.Beats {
			return &ValidationError{Reason: fmt.Sprintf("pattern has %d beats, meter has %d", len(e.Pattern), e.Beats)}
		}
		if e.Volume < 0 || e.Volume > 1 {
			return &ValidationError{Reason: "volume must be within [0, 1]"}
		}
	}
	return nil
}

// PatternString renders a pattern in the tempo map grammar: X for emphasis,
// x for normal, . for silent.
func PatternString(pattern []BeatType) string {
	var sb strings.Builder
	for _, b := range pattern {
		switch b {
		case BeatEmphasis:
			sb.WriteByte('X')
		case BeatSilent:
			sb.WriteByte('.')
		default:
			sb.WriteByte('x')
		}
	}
	return sb.String()
}

// Dump serializes the map in its canonical textual form, one entry per line.
// Parsing the dump yields the map back.
func (m TempoMap) Dump() string {
	var sb strings.Builder
	for i := range m.Entries {
		e := &m.Entries[i]
		if e.Label != "" {
			sb.WriteString(e.Label)
			sb.WriteString(": ")
		}
		if e.Bars == BarsInfinite {
			sb.WriteString("* ")
		} else {
			sb.WriteString(strconv.Itoa(e.Bars))
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d/%d ", e.Beats, e.Denom)
		switch {
		case e.Tempo == 0:
			sb.WriteByte('[')
			for k, t := range e.Tempi {
				if k > 0 {
					sb.WriteByte(',')
				}
				sb.WriteString(formatFloat(t))
			}
			sb.WriteByte(']')
		case e.Tempo2 != 0 && e.Tempo2 != e.Tempo:
			sb.WriteString(formatFloat(e.Tempo))
			sb.WriteByte('-')
			sb.WriteString(formatFloat(e.Tempo2))
		default:
			sb.WriteString(formatFloat(e.Tempo))
		}
		if len(e.Pattern) != 0 {
			sb.WriteByte(' ')
			sb.WriteString(PatternString(e.Pattern))
		}
		sb.WriteByte(' ')
		sb.WriteString(formatFloat(e.Volume))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
