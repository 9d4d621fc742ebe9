package taktell

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// Built-in click sounds: short sine bursts an octave apart.
const (
	EmphasisFrequency = 1760.0
	NormalFrequency   = 880.0

	clickMillis = 60
	clickAttack = 0.003 // seconds
	clickDecay  = 80.0  // 1/seconds
)

// NewClick synthesizes a click chunk: a sine burst with a short linear
// attack and an exponential decay, normalized to peak 1.
func NewClick(samplerate int, frequency float64) *Chunk {
	n := samplerate * clickMillis / 1000
	samples := make([]float32, n)
	attackFrames := clickAttack * float64(samplerate)
	for i := range samples {
		t := float64(i) / float64(samplerate)
		env := math.Exp(-t * clickDecay)
		if float64(i) < attackFrames {
			env *= float64(i) / attackFrames
		}
		samples[i] = float32(math.Sin(2*math.Pi*frequency*t) * env)
	}
	tmp := make([]float32, n)
	copy(tmp, samples)
	vek32.Abs_Inplace(tmp)
	if peak := vek32.Max(tmp); peak > 0 {
		vek32.MulNumber_Inplace(samples, 1/peak)
	}
	return &Chunk{Samples: samples, SampleRate: samplerate}
}

// DefaultClicks returns the built-in emphasis and normal click sounds at the
// given samplerate.
func DefaultClicks(samplerate int) (emphasis, normal *Chunk) {
	return NewClick(samplerate, EmphasisFrequency), NewClick(samplerate, NormalFrequency)
}
