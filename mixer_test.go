package taktell_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taktell/taktell"
)

func constChunk(value float32, length int) *taktell.Chunk {
	samples := make([]float32, length)
	for i := range samples {
		samples[i] = value
	}
	return &taktell.Chunk{Samples: samples, SampleRate: samplerate}
}

func TestMixerAddsAtOffset(t *testing.T) {
	m := taktell.NewMixer(8)
	m.Play(constChunk(1, 4), 2, 0.5)

	buf := make([]float32, 8)
	m.Mix(buf)
	assert.Equal(t, []float32{0, 0, 0.5, 0.5, 0.5, 0.5, 0, 0}, buf)

	// the voice played to its end and was released
	for i := range buf {
		buf[i] = 0
	}
	m.Mix(buf)
	assert.Equal(t, make([]float32, 8), buf)
}

func TestMixerSpansWindows(t *testing.T) {
	m := taktell.NewMixer(3)
	m.Play(constChunk(1, 4), 2, 1)

	buf := make([]float32, 3)
	m.Mix(buf)
	assert.Equal(t, []float32{0, 0, 1}, buf)

	buf = make([]float32, 3)
	m.Mix(buf)
	assert.Equal(t, []float32{1, 1, 1}, buf)

	buf = make([]float32, 3)
	m.Mix(buf)
	assert.Equal(t, []float32{0, 0, 0}, buf)
}

func TestMixerSumsVoices(t *testing.T) {
	m := taktell.NewMixer(4)
	m.Play(constChunk(1, 2), 0, 0.25)
	m.Play(constChunk(1, 2), 1, 0.25)

	buf := make([]float32, 4)
	m.Mix(buf)
	assert.Equal(t, []float32{0.25, 0.5, 0.25, 0}, buf)
}

func TestMixerOverflowOverwritesOldest(t *testing.T) {
	m := taktell.NewMixer(4)
	// the first voice is the only one with a non-zero signal; the ninth
	// play lands in its slot and silences it
	m.Play(constChunk(1, 2), 0, 1)
	for i := 1; i < taktell.MixerVoices+1; i++ {
		m.Play(constChunk(0, 2), 0, 1)
	}

	buf := make([]float32, 4)
	m.Mix(buf)
	assert.Equal(t, make([]float32, 4), buf)
}

func TestMixerMasterVolume(t *testing.T) {
	m := taktell.NewMixer(2)
	m.SetVolume(0.5)
	m.Play(constChunk(1, 2), 0, 0.5)

	buf := make([]float32, 2)
	m.Mix(buf)
	assert.Equal(t, []float32{0.25, 0.25}, buf)
}

func TestMixerGrowsScratch(t *testing.T) {
	m := taktell.NewMixer(2)
	m.Play(constChunk(1, 8), 0, 1)

	buf := make([]float32, 8)
	m.Mix(buf)
	assert.Equal(t, []float32{1, 1, 1, 1, 1, 1, 1, 1}, buf)
}
