package taktell

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// The tempo map grammar, shared by files and the command line. One entry per
// line, # starts a comment, blank lines are skipped:
//
//	[label:] [bars|*] [beats/denom] tempo [pattern] [volume]
//
// tempo is either a constant BPM, a linear ramp T1-T2, or a bracketed
// per-beat list [t1,t2,...]. The pattern is one character per beat: X for
// emphasis, x for normal, . for silent. Omitted fields default to one bar,
// 4/4 and volume 1.

// NewFromFile parses a tempo map from a file. Files with a .yml or .yaml
// extension use the YAML form, everything else the line grammar.
func NewFromFile(path string) (TempoMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TempoMap{}, fmt.Errorf("could not read tempo map: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return NewFromYAML(data)
	}
	return NewFromString(string(data))
}

// NewFromString parses a tempo map in the line grammar.
func NewFromString(text string) (TempoMap, error) {
	var m TempoMap
	labels := make(map[string]int)
	for i, raw := range strings.Split(text, "\n") {
		lineno := i + 1
		line := raw
		if cut := strings.IndexByte(line, '#'); cut >= 0 {
			line = line[:cut]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if n := len(m.Entries); n > 0 && m.Entries[n-1].Bars == BarsInfinite {
			return TempoMap{}, &ParseError{Line: lineno, Col: 1, Reason: "entry after an infinite (*) entry"}
		}
		e, labelCol, err := parseLine(line, lineno)
		if err != nil {
			return TempoMap{}, err
		}
		if e.Label != "" {
			if _, dup := labels[e.Label]; dup {
				return TempoMap{}, &ParseError{Line: lineno, Col: labelCol, Reason: fmt.Sprintf("duplicate label %q", e.Label)}
			}
			labels[e.Label] = lineno
		}
		m.Entries = append(m.Entries, e)
	}
	if len(m.Entries) == 0 {
		return TempoMap{}, &ValidationError{Reason: "map has no entries"}
	}
	return m, nil
}

// NewFromCommandLine parses an inline tempo map: either a single BPM value,
// shorthand for "* 4/4 BPM", or one full grammar line.
func NewFromCommandLine(line string) (TempoMap, error) {
	trimmed := strings.TrimSpace(line)
	if bpm, err := strconv.ParseFloat(trimmed, 64); err == nil {
		if bpm <= 0 {
			return TempoMap{}, &ParseError{Line: 1, Col: 1, Reason: "tempo must be positive"}
		}
		return NewSimple(BarsInfinite, bpm, 4, 4, nil, 1.0), nil
	}
	return NewFromString(line)
}

type token struct {
	text string
	col  int // 1-based
}

// splitTokens splits a line on whitespace, except that a bracketed per-beat
// tempo list counts as one token even if it contains spaces.
func splitTokens(line string, lineno int) ([]token, error) {
	var toks []token
	i := 0
	for i < len(line) {
		if line[i] == ' ' || line[i] == '\t' || line[i] == '\r' {
			i++
			continue
		}
		start := i
		if line[i] == '[' {
			end := strings.IndexByte(line[i:], ']')
			if end < 0 {
				return nil, &ParseError{Line: lineno, Col: start + 1, Reason: "unterminated tempo list"}
			}
			i += end + 1
		} else {
			for i < len(line) && line[i] != ' ' && line[i] != '\t' && line[i] != '\r' {
				i++
			}
		}
		toks = append(toks, token{text: line[start:i], col: start + 1})
	}
	return toks, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func isUint(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isPatternToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != 'X' && s[i] != 'x' && s[i] != '.' {
			return false
		}
	}
	return true
}

// rampParts splits "T1-T2" on the dash between two numbers. Returns ok false
// for anything that is not a ramp.
func rampParts(s string) (t1, t2 string, ok bool) {
	dash := strings.IndexByte(s[1:], '-') // a leading dash is never a ramp
	if dash < 0 {
		return "", "", false
	}
	dash++
	return s[:dash], s[dash+1:], true
}

func isTempoToken(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '[' {
		return true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	if t1, t2, ok := rampParts(s); ok {
		_, err1 := strconv.ParseFloat(t1, 64)
		_, err2 := strconv.ParseFloat(t2, 64)
		return err1 == nil && err2 == nil
	}
	return false
}

func parseLine(line string, lineno int) (e Entry, labelCol int, err error) {
	toks, err := splitTokens(line, lineno)
	if err != nil {
		return Entry{}, 0, err
	}
	e = Entry{Bars: 1, Beats: 4, Denom: 4, Volume: 1}
	i := 0

	// label
	if i < len(toks) && strings.HasSuffix(toks[i].text, ":") {
		name := strings.TrimSuffix(toks[i].text, ":")
		if !isIdent(name) {
			return Entry{}, 0, &ParseError{Line: lineno, Col: toks[i].col, Reason: fmt.Sprintf("invalid label %q", name)}
		}
		e.Label = name
		labelCol = toks[i].col
		i++
	}

	// bars, with backtracking: a bare integer can turn out to be the tempo
	mark := i
	barsWasNumber := false
	if i < len(toks) && toks[i].text == "*" {
		e.Bars = BarsInfinite
		i++
	} else if i < len(toks) && isUint(toks[i].text) {
		e.Bars, _ = strconv.Atoi(toks[i].text)
		if e.Bars == 0 {
			return Entry{}, 0, &ParseError{Line: lineno, Col: toks[i].col, Reason: "bar count must be positive"}
		}
		barsWasNumber = true
		i++
	}

	// meter
	if i < len(toks) && strings.Count(toks[i].text, "/") == 1 {
		if err := parseMeter(toks[i], lineno, &e); err != nil {
			return Entry{}, 0, err
		}
		i++
	}

	// tempo
	if i >= len(toks) || !isTempoToken(toks[i].text) {
		if barsWasNumber {
			// the integer was the tempo after all
			i = mark
			e.Bars = 1
		} else {
			col := len(line) + 1
			if i < len(toks) {
				col = toks[i].col
			}
			return Entry{}, 0, &ParseError{Line: lineno, Col: col, Reason: "expected tempo"}
		}
	}
	if err := parseTempo(toks[i], lineno, &e); err != nil {
		return Entry{}, 0, err
	}
	i++

	// pattern
	if i < len(toks) && isPatternToken(toks[i].text) {
		if len(toks[i].text) != e.Beats {
			return Entry{}, 0, &ParseError{Line: lineno, Col: toks[i].col,
				Reason: fmt.Sprintf("pattern has %d beats, meter has %d", len(toks[i].text), e.Beats)}
		}
		e.Pattern = make([]BeatType, len(toks[i].text))
		for k := 0; k < len(toks[i].text); k++ {
			switch toks[i].text[k] {
			case 'X':
				e.Pattern[k] = BeatEmphasis
			case 'x':
				e.Pattern[k] = BeatNormal
			case '.':
				e.Pattern[k] = BeatSilent
			}
		}
		i++
	}

	// volume
	if i < len(toks) {
		v, err := strconv.ParseFloat(toks[i].text, 64)
		if err != nil {
			return Entry{}, 0, &ParseError{Line: lineno, Col: toks[i].col, Reason: fmt.Sprintf("unexpected token %q", toks[i].text)}
		}
		if v < 0 || v > 1 {
			return Entry{}, 0, &ParseError{Line: lineno, Col: toks[i].col, Reason: "volume must be within [0, 1]"}
		}
		e.Volume = v
		i++
	}

	if i < len(toks) {
		return Entry{}, 0, &ParseError{Line: lineno, Col: toks[i].col, Reason: fmt.Sprintf("unexpected token %q", toks[i].text)}
	}
	return e, labelCol, nil
}

func parseMeter(tok token, lineno int, e *Entry) error {
	slash := strings.IndexByte(tok.text, '/')
	num, denom := tok.text[:slash], tok.text[slash+1:]
	if !isUint(num) || !isUint(denom) {
		return &ParseError{Line: lineno, Col: tok.col, Reason: fmt.Sprintf("invalid meter %q", tok.text)}
	}
	e.Beats, _ = strconv.Atoi(num)
	e.Denom, _ = strconv.Atoi(denom)
	if e.Beats < 1 || e.Denom < 1 {
		return &ParseError{Line: lineno, Col: tok.col, Reason: "meter must be positive"}
	}
	return nil
}

func parseTempo(tok token, lineno int, e *Entry) error {
	s := tok.text
	if s[0] == '[' {
		if e.Bars == BarsInfinite {
			return &ParseError{Line: lineno, Col: tok.col, Reason: "per-beat tempi need a finite bar count"}
		}
		body := strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		for _, field := range strings.Split(body, ",") {
			t, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil || t <= 0 {
				return &ParseError{Line: lineno, Col: tok.col, Reason: fmt.Sprintf("invalid tempo value %q", strings.TrimSpace(field))}
			}
			e.Tempi = append(e.Tempi, t)
		}
		if len(e.Tempi) != e.Bars*e.Beats {
			return &ParseError{Line: lineno, Col: tok.col,
				Reason: fmt.Sprintf("per-beat tempo list has %d values, need bars*beats = %d", len(e.Tempi), e.Bars*e.Beats)}
		}
		e.Tempo = 0
		return nil
	}
	if t, err := strconv.ParseFloat(s, 64); err == nil {
		if t <= 0 {
			return &ParseError{Line: lineno, Col: tok.col, Reason: "tempo must be positive"}
		}
		e.Tempo = t
		return nil
	}
	t1s, t2s, _ := rampParts(s)
	t1, err1 := strconv.ParseFloat(t1s, 64)
	t2, err2 := strconv.ParseFloat(t2s, 64)
	if err1 != nil || err2 != nil {
		return &ParseError{Line: lineno, Col: tok.col, Reason: fmt.Sprintf("invalid tempo %q", s)}
	}
	if t1 <= 0 || t2 <= 0 {
		return &ParseError{Line: lineno, Col: tok.col, Reason: "tempo must be positive"}
	}
	if t1 != t2 && e.Bars == BarsInfinite {
		return &ParseError{Line: lineno, Col: tok.col, Reason: "tempo ramp needs a finite bar count"}
	}
	e.Tempo = t1
	if t2 != t1 {
		e.Tempo2 = t2
	}
	return nil
}

// UsualDenominators is the set of meter denominators that need no warning.
// Other positive values are accepted but unusual.
var UsualDenominators = map[int]bool{1: true, 2: true, 4: true, 8: true, 16: true, 32: true}
