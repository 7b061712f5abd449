// Package audio is a small audio graph: oscillators feeding per-voice gain
// params into a master gain, an analyser tap, and an output backend.
package audio

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// SampleRate is the default output rate.
	SampleRate   = 44100
	channelCount = 2 // stereo
	bitDepth     = 2 // 16-bit

	// silenceFloor is the gain below which a released ring-out voice is
	// dropped from the graph.
	silenceFloor = 1e-4
)

// ErrUnavailable is returned when no audio output can be opened.
var ErrUnavailable = errors.New("audio output unavailable")

// Voice is an oscillator routed through its own gain param into the mix.
type Voice struct {
	osc      *Oscillator
	gain     *Param
	released bool
}

// Oscillator returns the voice's tone generator.
func (v *Voice) Oscillator() *Oscillator { return v.osc }

// Gain returns the voice's gain param.
func (v *Voice) Gain() *Param { return v.gain }

// Context owns the clock and the graph. The clock is the number of frames
// rendered so far; it only advances when the backend pulls audio.
type Context struct {
	mu         sync.Mutex
	sampleRate int
	frame      int64
	master     *Param
	voices     []*Voice
	analyser   *Analyser
	backend    Backend
	mixBuf     []float32
	tapBuf     []float32
	closed     bool
}

// NewContext creates a context at the given sample rate with the master
// gain at 1.
func NewContext(sampleRate int) *Context {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	c := &Context{
		sampleRate: sampleRate,
		analyser:   &Analyser{},
	}
	c.master = &Param{ctx: c, value: 1}
	return c
}

// Start connects the context to an output backend, which begins pulling
// audio from it.
func (c *Context) Start(b Backend) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("audio context closed")
	}
	c.backend = b
	c.mu.Unlock()

	if err := b.Start(c); err != nil {
		return fmt.Errorf("start backend: %w", err)
	}
	return nil
}

// Close stops the backend and drops every voice.
func (c *Context) Close() error {
	c.mu.Lock()
	b := c.backend
	c.backend = nil
	c.voices = nil
	c.closed = true
	c.mu.Unlock()

	if b != nil {
		return b.Close()
	}
	return nil
}

// SampleRate returns the context's sample rate.
func (c *Context) SampleRate() int { return c.sampleRate }

// CurrentTime returns the context clock in seconds.
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now()
}

func (c *Context) now() float64 {
	return float64(c.frame) / float64(c.sampleRate)
}

// Master returns the gain applied after mixing.
func (c *Context) Master() *Param { return c.master }

// Analyser returns the tap on the mixed signal.
func (c *Context) Analyser() *Analyser { return c.analyser }

// NewVoice creates an unstarted voice whose gain starts at initialGain.
func (c *Context) NewVoice(wave WaveType, frequency, initialGain float64) *Voice {
	v := &Voice{osc: newOscillator(wave, frequency)}
	v.gain = &Param{ctx: c, value: initialGain}
	return v
}

// StartVoice starts v now and adds it to the graph.
func (c *Context) StartVoice(v *Voice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || v.osc.started {
		return
	}
	v.osc.started = true
	v.osc.startAt = c.now()
	c.voices = append(c.voices, v)
}

// StopVoice stops v's oscillator at time t. The voice leaves the graph
// once the clock passes t.
func (c *Context) StopVoice(v *Voice, t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t < v.osc.stopAt {
		v.osc.stopAt = t
	}
}

// ReleaseVoice marks v as ringing out: it keeps sounding until its gain
// falls below the silence floor and is then dropped.
func (c *Context) ReleaseVoice(v *Voice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v.released = true
}

// Voices returns the number of voices still in the graph.
func (c *Context) Voices() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.voices)
}

// Render mixes len(dst) mono frames into dst and advances the clock.
func (c *Context) Render(dst []float32) {
	c.mu.Lock()
	if cap(c.tapBuf) < len(dst) {
		c.tapBuf = make([]float32, len(dst))
	}
	tap := c.tapBuf[:len(dst)]
	sr := float64(c.sampleRate)

	for i := range dst {
		t := c.now()
		var sample float64

		// Mix all sounding voices
		for _, v := range c.voices {
			if !v.osc.playing(t) {
				continue
			}
			sample += v.osc.next(sr) * v.gain.valueAt(t)
		}
		tap[i] = float32(sample)

		// Apply master gain and clip
		sample *= c.master.valueAt(t)
		if sample > 1.0 {
			sample = 1.0
		} else if sample < -1.0 {
			sample = -1.0
		}
		dst[i] = float32(sample)
		c.frame++
	}
	c.reap()
	c.analyser.write(tap)
	c.mu.Unlock()
}

// reap drops stopped voices and released voices that have gone silent.
func (c *Context) reap() {
	t := c.now()
	live := c.voices[:0]
	for _, v := range c.voices {
		if v.osc.stopped(t) {
			continue
		}
		if v.released && v.gain.valueAt(t) < silenceFloor {
			continue
		}
		live = append(live, v)
	}
	for i := len(live); i < len(c.voices); i++ {
		c.voices[i] = nil
	}
	c.voices = live
}

// Read implements io.Reader for the output backend, producing interleaved
// 16-bit little-endian stereo.
func (c *Context) Read(buf []byte) (int, error) {
	numSamples := len(buf) / (channelCount * bitDepth)
	if cap(c.mixBuf) < numSamples {
		c.mixBuf = make([]float32, numSamples)
	}
	samples := c.mixBuf[:numSamples]
	c.Render(samples)

	for i, s := range samples {
		// Convert to 16-bit signed integer
		sampleInt := int16(s * 32767)

		// Write stereo samples (same for L and R)
		idx := i * channelCount * bitDepth
		buf[idx] = byte(sampleInt)
		buf[idx+1] = byte(sampleInt >> 8)
		buf[idx+2] = byte(sampleInt)
		buf[idx+3] = byte(sampleInt >> 8)
	}
	for i := numSamples * channelCount * bitDepth; i < len(buf); i++ {
		buf[i] = 0
	}

	return len(buf), nil
}
