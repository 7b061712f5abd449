package audio

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownWaveform is returned by ParseWaveType.
var ErrUnknownWaveform = errors.New("unknown waveform")

// WaveType represents different oscillator wave shapes
type WaveType int

const (
	WaveSine WaveType = iota
	WaveSquare
	WaveSawtooth
	WaveTriangle
)

var waveNames = [...]string{
	WaveSine:     "sine",
	WaveSquare:   "square",
	WaveSawtooth: "sawtooth",
	WaveTriangle: "triangle",
}

func (w WaveType) String() string {
	if w < 0 || int(w) >= len(waveNames) {
		return fmt.Sprintf("WaveType(%d)", int(w))
	}
	return waveNames[w]
}

// ParseWaveType accepts the names returned by WaveType.String.
func ParseWaveType(s string) (WaveType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range waveNames {
		if name == s {
			return WaveType(i), nil
		}
	}
	if s == "saw" {
		return WaveSawtooth, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownWaveform, s)
}

// Oscillator is a periodic tone generator. Its shape and frequency are
// fixed for its lifetime.
type Oscillator struct {
	wave      WaveType
	frequency float64
	phase     float64
	startAt   float64
	stopAt    float64 // +Inf until Stop is called
	started   bool
}

func newOscillator(wave WaveType, frequency float64) *Oscillator {
	return &Oscillator{
		wave:      wave,
		frequency: frequency,
		stopAt:    math.Inf(1),
	}
}

// Wave returns the oscillator's shape.
func (o *Oscillator) Wave() WaveType { return o.wave }

// Frequency returns the oscillator's pitch in Hz.
func (o *Oscillator) Frequency() float64 { return o.frequency }

func (o *Oscillator) playing(t float64) bool {
	return o.started && t >= o.startAt && t < o.stopAt
}

func (o *Oscillator) stopped(t float64) bool {
	return o.started && t >= o.stopAt
}

// next returns the current sample and advances the phase by one frame.
func (o *Oscillator) next(sampleRate float64) float64 {
	s := generateWave(o.wave, o.phase)
	o.phase += o.frequency / sampleRate
	if o.phase >= 1.0 {
		o.phase -= math.Floor(o.phase)
	}
	return s
}

func generateWave(waveType WaveType, phase float64) float64 {
	switch waveType {
	case WaveSine:
		return math.Sin(2 * math.Pi * phase)
	case WaveSquare:
		if phase < 0.5 {
			return 1
		}
		return -1
	case WaveSawtooth:
		return 2*phase - 1
	case WaveTriangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}
