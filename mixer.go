package taktell

import (
	"github.com/viterin/vek/vek32"
)

// MixerVoices is the number of clicks that can sound at the same time.
const MixerVoices = 8

type mixerVoice struct {
	chunk  *Chunk
	offset int // frames into the next mix window
	pos    int // frames of the chunk already played
	volume float32
}

// Mixer is a fixed ring of voices adding click chunks into the output
// buffer. It has a single writer: the audio callback both schedules voices
// with Play and drains them with Mix. Scheduling a ninth concurrent voice
// overwrites the oldest one.
type Mixer struct {
	voices [MixerVoices]mixerVoice
	next   int
	volume float32
	tmp    []float32
}

// NewMixer creates a mixer with scratch space for windows up to maxFrames.
func NewMixer(maxFrames int) *Mixer {
	return &Mixer{volume: 1, tmp: make([]float32, maxFrames)}
}

// SetVolume sets the master volume. Call it from the goroutine that owns
// the mixer.
func (m *Mixer) SetVolume(v float32) { m.volume = v }

// Volume returns the master volume.
func (m *Mixer) Volume() float32 { return m.volume }

// Play schedules a chunk to start offset frames into the next mix window.
func (m *Mixer) Play(chunk *Chunk, offset int, volume float32) {
	m.voices[m.next] = mixerVoice{chunk: chunk, offset: offset, volume: volume}
	m.next = (m.next + 1) % MixerVoices
}

// Mix adds every active voice into buffer and releases voices that have
// played to their end.
func (m *Mixer) Mix(buffer []float32) {
	if len(buffer) > len(m.tmp) {
		m.tmp = make([]float32, len(buffer))
	}
	for i := range m.voices {
		v := &m.voices[i]
		if v.chunk == nil {
			continue
		}
		n := min(len(buffer)-v.offset, v.chunk.Length()-v.pos)
		if n > 0 {
			vek32.MulNumber_Into(m.tmp[:n], v.chunk.Samples[v.pos:v.pos+n], v.volume*m.volume)
			vek32.Add_Inplace(buffer[v.offset:v.offset+n], m.tmp[:n])
		}
		v.pos += len(buffer) - v.offset
		v.offset = 0
		if v.pos >= v.chunk.Length() {
			v.chunk = nil
		}
	}
}
