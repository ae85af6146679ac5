// Package audio plays rendered speech through the default output device.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// ErrClosed is returned by Play after Close.
var ErrClosed = errors.New("audio player closed")

// Player plays mono float32 PCM buffers. Calls to Play are serialized.
type Player struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	closed bool
}

// NewPlayer initializes the audio backend.
func NewPlayer() (*Player, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Player{ctx: ctx}, nil
}

// Play blocks until samples have been played or ctx is done.
func (p *Player) Play(ctx context.Context, samples []float32, sampleRate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if len(samples) == 0 {
		return nil
	}
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	src := newCursor(samples)
	finished := make(chan struct{})
	var once sync.Once

	onSend := func(out, _ []byte, frames uint32) {
		if src.fill(out, int(frames)) {
			once.Do(func() { close(finished) })
		}
	}

	device, err := malgo.InitDevice(p.ctx.Context, cfg, malgo.DeviceCallbacks{Data: onSend})
	if err != nil {
		return fmt.Errorf("init playback device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	defer device.Stop()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the audio backend.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.ctx.Uninit(); err != nil {
		return fmt.Errorf("uninit audio context: %w", err)
	}
	p.ctx.Free()
	return nil
}

// cursor feeds a sample buffer into device callbacks.
type cursor struct {
	mu      sync.Mutex
	samples []float32
	pos     int
}

func newCursor(samples []float32) *cursor {
	return &cursor{samples: samples}
}

// fill writes up to frames mono samples into out as little-endian float32 and
// pads the rest with silence. It reports whether the buffer is exhausted.
func (c *cursor) fill(out []byte, frames int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := frames
	if limit := len(out) / 4; n > limit {
		n = limit
	}
	for i := 0; i < n; i++ {
		var v float32
		if c.pos < len(c.samples) {
			v = c.samples[c.pos]
			c.pos++
		}
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return c.pos >= len(c.samples)
}
