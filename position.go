package taktell

import (
	"math"
	"sort"
)

type (
	// Position is a cursor over a TempoMap in units of audio frames. It is
	// advanced tick by tick and can be relocated to any absolute frame.
	// Position is not safe for concurrent use: all methods must be called
	// from the goroutine that owns it, normally the audio callback. The
	// frame is kept as a float64 throughout; only Tick rounds, truncating,
	// so a tick frame never lies after its true position.
	Position struct {
		tempomap   TempoMap
		samplerate int
		multiplier float64

		// frame and bar index at which each entry begins; one extra element
		// for the end of the map. Infinite for everything after an
		// infinite entry.
		startFrames []float64
		startBars   []int

		entry, bar, beat int
		barTotal         int
		frame            float64
		init             bool
		end              bool
	}

	// Tick is one click event: an absolute frame, a beat type and a volume.
	Tick struct {
		Frame  int64
		Type   BeatType
		Volume float64
	}
)

// Preroll2Beats is the AddPreroll sentinel for a single 2-beat count-in bar.
const Preroll2Beats = 0

const prerollVolume = 0.66

// NewPosition creates a position over the given map. The multiplier scales
// all tempi: doubling it halves every frame distance.
func NewPosition(tempomap TempoMap, samplerate int, multiplier float64) (*Position, error) {
	if err := tempomap.Validate(); err != nil {
		return nil, err
	}
	if samplerate <= 0 {
		return nil, &ConfigError{Reason: "samplerate must be positive"}
	}
	if multiplier <= 0 {
		return nil, &ConfigError{Reason: "tempo multiplier must be positive"}
	}
	p := &Position{
		tempomap:   tempomap,
		samplerate: samplerate,
		multiplier: multiplier,
	}
	p.computeTables()
	p.Reset()
	return p, nil
}

// computeTables precomputes the first frame and first bar of every entry.
func (p *Position) computeTables() {
	n := len(p.tempomap.Entries)
	p.startFrames = make([]float64, 0, n+1)
	p.startBars = make([]int, 0, n+1)
	f, b := 0.0, 0
	for i := range p.tempomap.Entries {
		p.startFrames = append(p.startFrames, f)
		p.startBars = append(p.startBars, b)
		e := &p.tempomap.Entries[i]
		if e.Bars != BarsInfinite {
			f += p.frameDist(e, 0, e.Bars*e.Beats)
			b += e.Bars
		} else {
			f = math.Inf(1)
			b = math.MaxInt
		}
	}
	p.startFrames = append(p.startFrames, f)
	p.startBars = append(p.startBars, b)
}

// Reset rewinds the cursor to frame zero.
func (p *Position) Reset() {
	p.frame = 0
	p.entry, p.bar, p.beat = 0, 0, 0
	p.barTotal = 0
	p.init = true
	p.end = false
}

// SetStartLabel drops all entries before the first one labeled label and
// rewinds. The remaining entries keep their labels.
func (p *Position) SetStartLabel(label string) error {
	i := p.tempomap.IndexOfLabel(label)
	if i < 0 {
		return ErrUnknownLabel
	}
	p.tempomap = TempoMap{Entries: append([]Entry(nil), p.tempomap.Entries[i:]...)}
	p.computeTables()
	p.Reset()
	return nil
}

// AddPreroll prepends a count-in to the map and rewinds. nbars is either a
// bar count of at least one, played in the meter and accent pattern of the
// first entry, or Preroll2Beats for a single 2/denom bar of two normal
// beats. The preroll always uses the initial tempo of the first entry, even
// when that entry is a ramp or has per-beat tempi.
func (p *Position) AddPreroll(nbars int) error {
	if nbars != Preroll2Beats && nbars < 1 {
		return &ConfigError{Reason: "preroll bar count must be positive"}
	}
	e := &p.tempomap.Entries[0]
	tempo := e.Tempo
	if tempo == 0 {
		tempo = e.Tempi[0]
	}

	var preroll TempoMap
	if nbars == Preroll2Beats {
		preroll = NewSimple(1, tempo, 2, e.Denom, []BeatType{BeatNormal, BeatNormal}, prerollVolume)
	} else {
		preroll = NewSimple(nbars, tempo, e.Beats, e.Denom, e.Pattern, prerollVolume)
	}

	joined, err := Join(preroll, p.tempomap)
	if err != nil {
		return err
	}
	p.tempomap = joined
	p.computeTables()
	p.Reset()
	return nil
}

// Locate moves the cursor to the last tick at or before frame f. If a tick
// lies exactly at f, the next Advance is a no-op so that tick is not
// skipped.
func (p *Position) Locate(f int64) {
	p.Reset()

	if f == 0 {
		return
	}
	ff := float64(f)

	// find the entry f is in
	p.entry = sort.Search(len(p.startFrames), func(i int) bool {
		return p.startFrames[i] > ff
	}) - 1

	if p.entry == len(p.tempomap.Entries) {
		p.end = true
		return
	}

	e := &p.tempomap.Entries[p.entry]
	diff := ff - p.startFrames[p.entry]

	switch {
	case e.Tempo != 0 && (e.Tempo2 == 0 || e.Tempo2 == e.Tempo):
		// constant tempo: the beat index is a closed-form division
		secs := diff / float64(p.samplerate) * p.multiplier
		nbeats := int(secs / 240.0 * e.Tempo * float64(e.Denom))
		p.setBeat(e, nbeats)

	case e.Tempo != 0:
		// tempo ramp: binary search for the largest beat index at or
		// before f
		nbeats := sort.Search(e.Bars*e.Beats+1, func(m int) bool {
			return p.frameDist(e, 0, m) > diff
		}) - 1
		p.setBeat(e, nbeats)

	default:
		// per-beat tempo: walk from the entry start
		p.bar, p.beat = 0, 0
		p.frame = p.startFrames[p.entry]
		p.barTotal = p.startBars[p.entry]
		for p.frame+p.DistToNext() <= ff && !p.end {
			p.Advance()
		}
	}

	// make sure we don't miss a beat that starts exactly at f
	p.init = p.frame == ff
}

// setBeat positions the cursor on beat index nbeats of the current entry,
// recomputing the frame from the entry start to shed accumulated error.
func (p *Position) setBeat(e *Entry, nbeats int) {
	p.bar = nbeats / e.Beats
	p.beat = nbeats % e.Beats
	p.frame = p.startFrames[p.entry] + p.frameDist(e, 0, p.bar*e.Beats+p.beat)
	p.barTotal = p.startBars[p.entry] + p.bar
}

// Advance moves the cursor to the next tick. Directly after Reset or an
// exact Locate the first call only consumes the init flag, leaving the
// cursor on the current tick.
func (p *Position) Advance() {
	if p.init {
		p.init = false
		return
	}

	p.frame += p.DistToNext()

	e := &p.tempomap.Entries[p.entry]

	if p.beat++; p.beat >= e.Beats {
		p.beat = 0
		if p.bar++; p.bar >= e.Bars && e.Bars != BarsInfinite {
			p.bar = 0
			if p.entry++; p.entry >= len(p.tempomap.Entries) {
				p.entry--
				p.end = true
			}
		}
		p.barTotal++
	}
}

// DistToNext returns the distance in frames from the current tick to the
// next one. It is zero right after Reset or an exact Locate, and infinite
// past the end of the map.
func (p *Position) DistToNext() float64 {
	if p.init {
		return 0
	}
	if p.end {
		return math.Inf(1)
	}
	e := &p.tempomap.Entries[p.entry]
	b := p.bar*e.Beats + p.beat
	return p.frameDist(e, b, b+1)
}

// frameDist returns the distance in frames between two beat indices of one
// entry, 0 <= start <= end <= bars*beats. For a tempo ramp the tempo is a
// linear function of the beat index and the exact traversal time follows
// from the logarithmic mean of the endpoint tempi.
func (p *Position) frameDist(e *Entry, start, end int) float64 {
	if start == end {
		return 0
	}

	nbeats := end - start
	var secs float64

	switch {
	case e.Tempo != 0 && (e.Tempo2 == 0 || e.Tempo2 == e.Tempo):
		secs = float64(nbeats) * 240.0 / (e.Tempo * float64(e.Denom))
	case e.Tempo != 0:
		total := float64(e.Bars * e.Beats)
		tdiff := e.Tempo2 - e.Tempo
		t1 := e.Tempo + tdiff*float64(start)/total
		t2 := e.Tempo + tdiff*float64(end)/total
		avg := (t1 - t2) / (math.Log(t1) - math.Log(t2))
		secs = float64(nbeats) * 240.0 / (avg * float64(e.Denom))
	default:
		for k := start; k < end; k++ {
			secs += 240.0 / (e.Tempi[k] * float64(e.Denom))
		}
	}

	return secs * float64(p.samplerate) / p.multiplier
}

// Tick returns the click event at the current cursor position. Past the end
// of the map the tick is silent.
func (p *Position) Tick() Tick {
	if p.end {
		return Tick{Frame: int64(p.frame), Type: BeatSilent, Volume: 0}
	}
	e := &p.tempomap.Entries[p.entry]
	var t BeatType
	if len(e.Pattern) == 0 {
		if p.beat == 0 {
			t = BeatEmphasis
		} else {
			t = BeatNormal
		}
	} else {
		t = e.Pattern[p.beat]
	}
	return Tick{Frame: int64(p.frame), Type: t, Volume: e.Volume}
}

// NextFrame returns the frame of the tick that the next Advance moves to;
// the current tick's frame while the init flag is set, infinity past the
// end.
func (p *Position) NextFrame() float64 {
	return p.frame + p.DistToNext()
}

// Frame returns the unrounded frame of the current tick.
func (p *Position) Frame() float64 { return p.frame }

// End reports whether the cursor has passed the last entry.
func (p *Position) End() bool { return p.end }

// Entry returns the index of the current entry.
func (p *Position) Entry() int { return p.entry }

// Bar returns the bar index within the current entry.
func (p *Position) Bar() int { return p.bar }

// Beat returns the beat index within the current bar.
func (p *Position) Beat() int { return p.beat }

// BarTotal returns the number of bars elapsed since frame zero.
func (p *Position) BarTotal() int { return p.barTotal }

// TempoMap returns the map the position plays, including any preroll and
// start label trims applied to it.
func (p *Position) TempoMap() TempoMap { return p.tempomap }

// CurrentTempo returns the instantaneous tempo at the cursor, after the
// global multiplier. Past the end it is the final tempo of the map.
func (p *Position) CurrentTempo() float64 {
	e := &p.tempomap.Entries[p.entry]
	k := p.bar*e.Beats + p.beat
	if p.end {
		k = e.NumBeats()
	}
	return e.TempoAt(k) * p.multiplier
}

// Meter returns the meter of the current entry.
func (p *Position) Meter() (beats, denom int) {
	e := &p.tempomap.Entries[p.entry]
	return e.Beats, e.Denom
}

// SampleRate returns the samplerate the position was built for.
func (p *Position) SampleRate() int { return p.samplerate }

// Multiplier returns the global tempo multiplier.
func (p *Position) Multiplier() float64 { return p.multiplier }
