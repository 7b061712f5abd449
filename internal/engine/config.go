package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/icco/keysynth/internal/audio"
)

var (
	ErrUnknownPreset        = errors.New("unknown preset")
	ErrUnknownNormalization = errors.New("unknown normalization")
	ErrUnknownRelease       = errors.New("unknown release mode")
	ErrInvalidConfig        = errors.New("invalid config")
)

// DefaultMaxOverallGain caps the master gain.
const DefaultMaxOverallGain = 0.8

// ReleaseMode decides what happens to a note's oscillator on key-up.
type ReleaseMode int

const (
	// ReleaseRingOut lets the oscillator run until its gain decays below
	// the host's silence floor.
	ReleaseRingOut ReleaseMode = iota
	// ReleaseStop stops the oscillator StopAfter past key-up.
	ReleaseStop
)

func (r ReleaseMode) String() string {
	if r == ReleaseStop {
		return "stop"
	}
	return "ring-out"
}

// ParseReleaseMode accepts "ring-out" and "stop".
func ParseReleaseMode(s string) (ReleaseMode, error) {
	switch strings.ToLower(s) {
	case "ring-out", "ringout":
		return ReleaseRingOut, nil
	case "stop":
		return ReleaseStop, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRelease, s)
}

// Normalization selects which per-note gain feeds the master gain
// computation.
type Normalization int

const (
	// NormalizeInstantaneous sums each note's gain as it is right now,
	// so notes still in their attack count for less (or more) than they
	// will once they settle.
	NormalizeInstantaneous Normalization = iota
	// NormalizeTarget sums each note's peak level.
	NormalizeTarget
)

func (n Normalization) String() string {
	if n == NormalizeTarget {
		return "target"
	}
	return "instantaneous"
}

// ParseNormalization accepts "instantaneous" and "target".
func ParseNormalization(s string) (Normalization, error) {
	switch strings.ToLower(s) {
	case "instantaneous", "instant":
		return NormalizeInstantaneous, nil
	case "target":
		return NormalizeTarget, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownNormalization, s)
}

// Envelope holds the amplitude shape shared by every note.
type Envelope struct {
	Attack  time.Duration // ramp from InitialLevel to PeakLevel
	Decay   time.Duration // time constant towards SustainLevel
	Release time.Duration // time constant towards silence

	InitialLevel float64 // gain the note starts at
	PeakLevel    float64
	SustainLevel float64
}

// Config is the process-wide synth configuration.
type Config struct {
	Name           string
	Envelope       Envelope
	MaxOverallGain float64
	Release        ReleaseMode
	StopAfter      time.Duration // ReleaseStop only
	Normalization  Normalization
	Waveform       audio.WaveType
	Scope          bool // waveform display and key colours
}

var presets = map[string]Config{
	"scope": {
		Name: "scope",
		Envelope: Envelope{
			Attack:       200 * time.Millisecond,
			Decay:        300 * time.Millisecond,
			Release:      50 * time.Millisecond,
			InitialLevel: 1.0,
			PeakLevel:    0.4,
			SustainLevel: 0.2,
		},
		MaxOverallGain: DefaultMaxOverallGain,
		Release:        ReleaseRingOut,
		Normalization:  NormalizeInstantaneous,
		Waveform:       audio.WaveSine,
		Scope:          true,
	},
	"classic": {
		Name: "classic",
		Envelope: Envelope{
			Attack:       50 * time.Millisecond,
			Decay:        200 * time.Millisecond,
			Release:      100 * time.Millisecond,
			InitialLevel: 1.0,
			PeakLevel:    1.0,
			SustainLevel: 0.6,
		},
		MaxOverallGain: DefaultMaxOverallGain,
		Release:        ReleaseStop,
		StopAfter:      500 * time.Millisecond,
		Normalization:  NormalizeInstantaneous,
		Waveform:       audio.WaveSine,
	},
}

// Preset returns a copy of a named configuration.
func Preset(name string) (Config, error) {
	cfg, ok := presets[strings.ToLower(name)]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q (have %s)", ErrUnknownPreset, name, strings.Join(PresetNames(), ", "))
	}
	return cfg, nil
}

// PresetNames lists the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate reports the first problem with c.
func (c Config) Validate() error {
	env := c.Envelope
	switch {
	case c.MaxOverallGain <= 0:
		return fmt.Errorf("%w: max overall gain must be positive", ErrInvalidConfig)
	case env.Attack < 0 || env.Decay < 0 || env.Release < 0 || c.StopAfter < 0:
		return fmt.Errorf("%w: envelope times must not be negative", ErrInvalidConfig)
	case env.PeakLevel <= 0 || env.InitialLevel <= 0:
		// an exponential attack cannot start or end at zero
		return fmt.Errorf("%w: initial and peak levels must be positive", ErrInvalidConfig)
	case env.SustainLevel < 0:
		return fmt.Errorf("%w: sustain level must not be negative", ErrInvalidConfig)
	}
	return nil
}
