package taktell_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/taktell/taktell"
)

func TestNewFromCommandLineTempo(t *testing.T) {
	m, err := taktell.NewFromCommandLine("120")
	require.NoError(t, err)
	require.Len(t, m.Entries, 1)
	e := m.Entries[0]
	assert.Equal(t, taktell.BarsInfinite, e.Bars)
	assert.Equal(t, 4, e.Beats)
	assert.Equal(t, 4, e.Denom)
	assert.Equal(t, 120.0, e.Tempo)
	assert.Equal(t, 0.0, e.Tempo2)
	assert.Empty(t, e.Pattern)
	assert.Equal(t, 1.0, e.Volume)
}

func TestNewFromCommandLineFullLine(t *testing.T) {
	m, err := taktell.NewFromCommandLine("4 3/4 100 Xx. 0.8")
	require.NoError(t, err)
	require.Len(t, m.Entries, 1)
	e := m.Entries[0]
	assert.Equal(t, 4, e.Bars)
	assert.Equal(t, 3, e.Beats)
	assert.Equal(t, 4, e.Denom)
	assert.Equal(t, 100.0, e.Tempo)
	assert.Equal(t, []taktell.BeatType{taktell.BeatEmphasis, taktell.BeatNormal, taktell.BeatSilent}, e.Pattern)
	assert.Equal(t, 0.8, e.Volume)
}

func TestParseDefaults(t *testing.T) {
	m, err := taktell.NewFromString("8 132")
	require.NoError(t, err)
	e := m.Entries[0]
	assert.Equal(t, 8, e.Bars)
	assert.Equal(t, 4, e.Beats)
	assert.Equal(t, 4, e.Denom)
	assert.Equal(t, 132.0, e.Tempo)

	// a lone number in a file is one bar, not an infinite entry
	m, err = taktell.NewFromString("132")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Entries[0].Bars)
	assert.Equal(t, 132.0, m.Entries[0].Tempo)
}

func TestParseMultiLine(t *testing.T) {
	text := `# a song
intro:  2 4/4 100        # count-in-ish
verse:  8 4/4 120-140 XxXx 0.9

outro:  * 6/8 140
`
	m, err := taktell.NewFromString(text)
	require.NoError(t, err)
	require.Len(t, m.Entries, 3)
	assert.Equal(t, "intro", m.Entries[0].Label)
	assert.Equal(t, 120.0, m.Entries[1].Tempo)
	assert.Equal(t, 140.0, m.Entries[1].Tempo2)
	assert.Equal(t, taktell.BarsInfinite, m.Entries[2].Bars)
	assert.Equal(t, 6, m.Entries[2].Beats)
	assert.Equal(t, 8, m.Entries[2].Denom)

	e, ok := m.EntryByLabel("verse")
	assert.True(t, ok)
	assert.Equal(t, 8, e.Bars)
	_, ok = m.EntryByLabel("bridge")
	assert.False(t, ok)
}

func TestParsePerBeat(t *testing.T) {
	m, err := taktell.NewFromString("1 4/4 [60,60,120,120]")
	require.NoError(t, err)
	e := m.Entries[0]
	assert.Equal(t, 0.0, e.Tempo)
	assert.Equal(t, []float64{60, 60, 120, 120}, e.Tempi)

	// spaces inside the list are fine
	m, err = taktell.NewFromString("1 2/4 [60, 120]")
	require.NoError(t, err)
	assert.Equal(t, []float64{60, 120}, m.Entries[0].Tempi)
}

func TestParseRampNormalization(t *testing.T) {
	m, err := taktell.NewFromString("2 4/4 100-100")
	require.NoError(t, err)
	assert.Equal(t, 100.0, m.Entries[0].Tempo)
	assert.Equal(t, 0.0, m.Entries[0].Tempo2)
}

func TestParseErrors(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input string
		line  int
		col   int
	}{
		{"pattern length", "4 4/4 60 Xx", 1, 10},
		{"entry after infinite", "* 100\n4 4/4 120", 2, 1},
		{"duplicate label", "a: 1 4/4 120\na: 1 4/4 130", 2, 1},
		{"per-beat length", "1 4/4 [60,60]", 1, 7},
		{"per-beat infinite", "* 4/4 [60,60,60,60]", 1, 7},
		{"ramp infinite", "* 4/4 60-120", 1, 7},
		{"unterminated list", "1 4/4 [60,60", 1, 7},
		{"volume range", "4 4/4 120 xxxx 1.5", 1, 16},
		{"zero tempo", "1 4/4 0", 1, 7},
		{"zero bars", "0 4/4 120", 1, 1},
		{"bad meter", "1 4/x 120", 1, 3},
		{"missing tempo", "* 4/4", 1, 6},
		{"garbage", "1 4/4 120 !!!", 1, 11},
		{"bad label", "1x-: 120", 1, 1},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := taktell.NewFromString(tt.input)
			var perr *taktell.ParseError
			require.ErrorAs(t, err, &perr, "input %q", tt.input)
			assert.Equal(t, tt.line, perr.Line)
			assert.Equal(t, tt.col, perr.Col)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := taktell.NewFromString("# nothing\n\n")
	var verr *taktell.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDumpRoundTrip(t *testing.T) {
	for _, text := range []string{
		"120",
		"4 3/4 96.5 Xx. 0.75",
		"intro: 2 4/4 100\nverse: 8 4/4 120-140 XxXx 0.9\n* 6/8 140",
		"1 4/4 [60,60,120,120]",
		"2 2/4 60-120 .x",
	} {
		m, err := taktell.NewFromString(text)
		require.NoError(t, err, "input %q", text)
		m2, err := taktell.NewFromString(m.Dump())
		require.NoError(t, err, "dump of %q: %q", text, m.Dump())
		assert.Equal(t, m, m2, "round-trip of %q", text)
	}
}

func TestJoin(t *testing.T) {
	a, err := taktell.NewFromString("a: 2 4/4 100\nb: 2 4/4 110")
	require.NoError(t, err)
	b, err := taktell.NewFromString("c: * 4/4 120")
	require.NoError(t, err)

	j, err := taktell.Join(a, b)
	require.NoError(t, err)
	require.Len(t, j.Entries, 3)
	assert.Equal(t, "a", j.Entries[0].Label)
	assert.Equal(t, "c", j.Entries[2].Label)

	_, err = taktell.Join(j, a)
	var jerr *taktell.JoinError
	assert.ErrorAs(t, err, &jerr)

	_, err = taktell.Join(a, a)
	var verr *taktell.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestJoinAssociative(t *testing.T) {
	a, _ := taktell.NewFromString("a: 1 4/4 100")
	b, _ := taktell.NewFromString("b: 1 3/4 110")
	c, _ := taktell.NewFromString("c: * 4/4 120")

	ab, err := taktell.Join(a, b)
	require.NoError(t, err)
	left, err := taktell.Join(ab, c)
	require.NoError(t, err)
	bc, err := taktell.Join(b, c)
	require.NoError(t, err)
	right, err := taktell.Join(a, bc)
	require.NoError(t, err)
	assert.Equal(t, left, right)
}

func TestNewSimple(t *testing.T) {
	m := taktell.NewSimple(2, 90, 3, 8, []taktell.BeatType{taktell.BeatNormal, taktell.BeatNormal, taktell.BeatNormal}, 0.66)
	require.NoError(t, m.Validate())
	e := m.Entries[0]
	assert.Equal(t, 2, e.Bars)
	assert.Equal(t, 3, e.Beats)
	assert.Equal(t, 8, e.Denom)
	assert.Equal(t, 0.66, e.Volume)
}

func TestValidate(t *testing.T) {
	m := taktell.TempoMap{Entries: []taktell.Entry{
		{Bars: taktell.BarsInfinite, Tempo: 120, Beats: 4, Denom: 4, Volume: 1},
		{Bars: 1, Tempo: 120, Beats: 4, Denom: 4, Volume: 1},
	}}
	var verr *taktell.ValidationError
	assert.ErrorAs(t, m.Validate(), &verr)

	m = taktell.TempoMap{Entries: []taktell.Entry{
		{Bars: 1, Tempo: 0, Tempi: []float64{60, 60}, Beats: 4, Denom: 4, Volume: 1},
	}}
	assert.ErrorAs(t, m.Validate(), &verr)
}

func TestYAMLRoundTrip(t *testing.T) {
	m, err := taktell.NewFromString("intro: 2 4/4 100 Xxxx 0.9\n4 4/4 120-160\n* 4/4 160")
	require.NoError(t, err)

	data, err := yaml.Marshal(m)
	require.NoError(t, err)
	m2, err := taktell.NewFromYAML(data)
	require.NoError(t, err)
	assert.Equal(t, m, m2)
}

func TestYAMLRejectsInvalid(t *testing.T) {
	_, err := taktell.NewFromYAML([]byte("- bars: -1\n  beats: 4\n  denom: 4\n  tempo: 120\n  volume: 1\n- bars: 1\n  beats: 4\n  denom: 4\n  tempo: 100\n  volume: 1\n"))
	var verr *taktell.ValidationError
	assert.ErrorAs(t, err, &verr)
}
