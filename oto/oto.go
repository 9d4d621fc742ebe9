// Package oto outputs the click track to the default audio device using
// github.com/ebitengine/oto/v3. The oto player pulls audio through an
// io.Reader; the Read calls arrive on oto's playback goroutine, so driving
// the process callback from Read keeps all engine state on one goroutine.
package oto

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ebitengine/oto/v3"

	"github.com/taktell/taktell"
)

const (
	defaultBufferFrames = 2048
	maxReadFrames       = 16384
)

// Context is a taktell.AudioContext over an oto playback device. The frame
// clock starts at zero when Start is called and advances by the number of
// frames pulled.
type Context struct {
	ctx        *oto.Context
	player     *oto.Player
	samplerate int
	mixer      *taktell.Mixer
	callback   taktell.ProcessCallback
}

// NewContext opens the audio device at the given samplerate.
func NewContext(samplerate int) (*Context, error) {
	op := &oto.NewContextOptions{
		SampleRate:   samplerate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{
		ctx:        ctx,
		samplerate: samplerate,
		mixer:      taktell.NewMixer(maxReadFrames),
	}, nil
}

func (c *Context) SampleRate() int { return c.samplerate }

// Play schedules a chunk into the current process window. Only valid from
// within the process callback.
func (c *Context) Play(chunk *taktell.Chunk, offset int, volume float32) {
	c.mixer.Play(chunk, offset, volume)
}

// SetVolume sets the master volume. Call before Start.
func (c *Context) SetVolume(volume float32) {
	c.mixer.SetVolume(volume)
}

// SetProcessCallback registers the callback that schedules clicks for each
// pulled window. Call before Start.
func (c *Context) SetProcessCallback(cb taktell.ProcessCallback) {
	c.callback = cb
}

// Start begins pulling audio from the process callback.
func (c *Context) Start() error {
	if c.player != nil {
		return fmt.Errorf("oto context already started")
	}
	c.player = c.ctx.NewPlayer(&reader{context: c, mono: make([]float32, maxReadFrames)})
	c.player.SetBufferSize(defaultBufferFrames * 8) // frames to bytes: two float32 channels
	c.player.Play()
	return nil
}

func (c *Context) Close() error {
	if c.player != nil {
		if err := c.player.Close(); err != nil {
			return fmt.Errorf("cannot close oto player: %w", err)
		}
		c.player = nil
	}
	return nil
}

// reader adapts the pull model: every Read runs one process period over the
// mixer and interleaves the mono mix into stereo float32 frames.
type reader struct {
	context *Context
	frame   int64
	mono    []float32
}

func (r *reader) Read(p []byte) (int, error) {
	nframes := len(p) / 8
	if nframes > maxReadFrames {
		nframes = maxReadFrames
	}
	if nframes == 0 {
		return 0, nil
	}

	mono := r.mono[:nframes]
	for i := range mono {
		mono[i] = 0
	}
	if cb := r.context.callback; cb != nil {
		cb(r.frame, nframes)
	}
	r.context.mixer.Mix(mono)

	for i, s := range mono {
		bits := math.Float32bits(s)
		binary.LittleEndian.PutUint32(p[i*8:], bits)
		binary.LittleEndian.PutUint32(p[i*8+4:], bits)
	}
	r.frame += int64(nframes)
	return nframes * 8, nil
}
