// Package metronome drives a taktell.Position from an audio backend's
// process callback, turning tick events into click playback requests.
package metronome

import (
	"fmt"

	"github.com/taktell/taktell"
)

// EmphasisMode overrides the accent pattern when choosing the click sound.
type EmphasisMode int

const (
	EmphasisNormal EmphasisMode = iota // play accents as written
	EmphasisNone                       // never play the emphasis sound
	EmphasisAll                        // play every beat with the emphasis sound
)

// Preroll settings for Options.Preroll; any value >= 1 is a bar count.
const (
	PrerollNone   = -1
	Preroll2Beats = taktell.Preroll2Beats
)

// TicksPerBeat is the tick resolution of the published transport position.
const TicksPerBeat = 1920.0

// Options configures an engine instance.
type Options struct {
	TempoMultiplier  float64
	Preroll          int // PrerollNone, Preroll2Beats or a bar count
	StartLabel       string
	Emphasis         EmphasisMode
	VolumeEmphasis   float64
	VolumeNormal     float64
	TransportEnabled bool
	TransportMaster  bool
}

// DefaultOptions returns the neutral configuration.
func DefaultOptions() Options {
	return Options{
		TempoMultiplier: 1,
		Preroll:         PrerollNone,
		VolumeEmphasis:  1,
		VolumeNormal:    1,
	}
}

func (o *Options) validate() error {
	if o.TempoMultiplier <= 0 {
		return &taktell.ConfigError{Reason: "tempo multiplier must be positive"}
	}
	if o.Preroll < PrerollNone {
		return &taktell.ConfigError{Reason: "negative preroll bar count"}
	}
	if o.Emphasis < EmphasisNormal || o.Emphasis > EmphasisAll {
		return &taktell.ConfigError{Reason: fmt.Sprintf("unknown emphasis mode %d", o.Emphasis)}
	}
	if o.VolumeEmphasis < 0 || o.VolumeEmphasis > 1 || o.VolumeNormal < 0 || o.VolumeNormal > 1 {
		return &taktell.ConfigError{Reason: "click volume must be within [0, 1]"}
	}
	return nil
}

// Timebase is the musical position published to the host when the engine is
// transport master.
type Timebase struct {
	Bar          int // 1-based
	Beat         int // 1-based
	Tick         int // within the beat, out of TicksPerBeat
	TicksPerBeat float64
	BeatsPerBar  int
	BeatType     int
	BPM          float64
}

// Metronome plays a click track over a tempo map. All engine state is owned
// by the audio callback goroutine; the control side talks to a running
// engine only through the broker.
type Metronome struct {
	out    taktell.Output
	broker *Broker
	pos    *taktell.Position
	opts   Options

	emphasisChunk *taktell.Chunk
	normalChunk   *taktell.Chunk

	current int64 // frame the next process window is expected to start at
	located bool
	active  bool
}

// New builds an engine over the given map: the start label trim is applied
// first, then the preroll, as the preroll counts in with the meter and tempo
// of the entry the playback actually starts at.
func New(out taktell.Output, tempomap taktell.TempoMap, broker *Broker, opts Options) (*Metronome, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	pos, err := taktell.NewPosition(tempomap, out.SampleRate(), opts.TempoMultiplier)
	if err != nil {
		return nil, err
	}
	if opts.StartLabel != "" {
		if err := pos.SetStartLabel(opts.StartLabel); err != nil {
			return nil, fmt.Errorf("start label %q: %w", opts.StartLabel, err)
		}
	}
	if opts.Preroll != PrerollNone {
		if err := pos.AddPreroll(opts.Preroll); err != nil {
			return nil, err
		}
	}
	return &Metronome{
		out:    out,
		broker: broker,
		pos:    pos,
		opts:   opts,
	}, nil
}

// SetSound sets the click chunks. Call before the audio backend starts.
func (m *Metronome) SetSound(emphasis, normal *taktell.Chunk) {
	m.emphasisChunk = emphasis
	m.normalChunk = normal
}

// Start activates the engine. On a running engine this goes through the
// broker and takes effect at the next process period.
func (m *Metronome) Start() { TrySend(m.broker.ToEngine, any(ActiveMsg{Active: true})) }

// Stop deactivates the engine; scheduled voices keep draining in the mixer.
func (m *Metronome) Stop() { TrySend(m.broker.ToEngine, any(ActiveMsg{Active: false})) }

// Running reports whether ticks are still ahead of the cursor; false once a
// finite map has played out. Callback goroutine only; the control side
// should watch MsgToModel.End instead.
func (m *Metronome) Running() bool { return !m.pos.End() }

// Position returns the engine's position, with preroll and start label
// applied. Callback goroutine only, or before the backend starts.
func (m *Metronome) Position() *taktell.Position { return m.pos }

// Process is the audio callback: it emits every tick that falls into the
// window [f0, f0+nframes). With TransportEnabled, the host frame clock is
// authoritative and a gap between f0 and the end of the previous window is
// a transport seek that relocates the cursor. Otherwise the engine
// free-runs on its own accumulated clock from wherever the first window
// started.
func (m *Metronome) Process(f0 int64, nframes int) {
	m.processMessages()

	if !m.active {
		m.current = f0 + int64(nframes)
		return
	}

	if m.opts.TransportEnabled {
		if !m.located || f0 != m.current {
			m.pos.Locate(f0)
			m.located = true
		}
	} else {
		if !m.located {
			m.pos.Locate(f0)
			m.current = f0
			m.located = true
		}
		f0 = m.current
	}

	end := f0 + int64(nframes)
	for !m.pos.End() && m.pos.NextFrame() < float64(end) {
		m.pos.Advance()
		t := m.pos.Tick()
		if t.Type != taktell.BeatSilent {
			chunk, gain := m.sound(t.Type)
			if chunk != nil {
				m.out.Play(chunk, int(t.Frame-f0), float32(gain*t.Volume))
			}
		}
	}

	msg := MsgToModel{
		Frame:    end,
		BarTotal: m.pos.BarTotal(),
		Beat:     m.pos.Beat(),
		Tempo:    m.pos.CurrentTempo(),
		End:      m.pos.End(),
	}
	if m.opts.TransportMaster {
		msg.HasTimebase = true
		msg.Timebase = m.timebase(f0)
	}
	TrySend(m.broker.ToModel, msg)

	m.current = end
}

// processMessages drains the control channel without blocking.
func (m *Metronome) processMessages() {
loop:
	for {
		select {
		case msg := <-m.broker.ToEngine:
			switch v := msg.(type) {
			case *taktell.Position:
				m.pos = v
				m.located = false
			case ActiveMsg:
				if v.Active && !m.active {
					m.located = false
				}
				m.active = v.Active
			case VolumeMsg:
				m.opts.VolumeEmphasis = v.Emphasis
				m.opts.VolumeNormal = v.Normal
			default:
				// ignore unknown messages
			}
		default:
			break loop
		}
	}
}

func (m *Metronome) sound(t taktell.BeatType) (*taktell.Chunk, float64) {
	switch m.opts.Emphasis {
	case EmphasisNone:
		t = taktell.BeatNormal
	case EmphasisAll:
		t = taktell.BeatEmphasis
	}
	if t == taktell.BeatEmphasis {
		return m.emphasisChunk, m.opts.VolumeEmphasis
	}
	return m.normalChunk, m.opts.VolumeNormal
}

// timebase computes the published transport position at window start f0.
func (m *Metronome) timebase(f0 int64) Timebase {
	beats, denom := m.pos.Meter()
	bpm := m.pos.CurrentTempo()
	tb := Timebase{
		Bar:          m.pos.BarTotal() + 1,
		Beat:         m.pos.Beat() + 1,
		TicksPerBeat: TicksPerBeat,
		BeatsPerBar:  beats,
		BeatType:     denom,
		BPM:          bpm,
	}
	if !m.pos.End() && bpm > 0 {
		framesPerBeat := 240.0 / (bpm * float64(denom)) * float64(m.out.SampleRate())
		tick := (float64(f0) - m.pos.Frame()) * TicksPerBeat / framesPerBeat
		if tick > 0 {
			tb.Tick = int(tick) % int(TicksPerBeat)
		}
	}
	return tb
}
