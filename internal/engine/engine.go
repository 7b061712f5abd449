// Package engine is the polyphonic note controller: it owns the audio
// context, the registry of sounding keys and the master gain.
//
// An Engine is not safe for concurrent use. All calls are expected from a
// single event loop; the audio context does its own locking against the
// output goroutine.
package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/icco/keysynth/internal/audio"
	"github.com/icco/keysynth/internal/keymap"
)

type note struct {
	code      keymap.Code
	voice     *audio.Voice
	target    float64 // level the attack heads for
	startedAt float64
}

// Note describes a sounding key.
type Note struct {
	Code      keymap.Code
	Frequency float64
	Wave      audio.WaveType
	Gain      float64 // instantaneous
	Target    float64
	StartedAt float64 // context seconds
}

// Engine turns key events into voices.
type Engine struct {
	cfg      Config
	ctx      *audio.Context
	waveform audio.WaveType
	active   map[keymap.Code]*note
	lastKey  keymap.Code
	closed   bool
}

// New builds an engine on an existing context. The master gain is set to
// the configured maximum.
func New(cfg Config, ctx *audio.Context) *Engine {
	ctx.Master().SetValue(cfg.MaxOverallGain)
	return &Engine{
		cfg:      cfg,
		ctx:      ctx,
		waveform: cfg.Waveform,
		active:   make(map[keymap.Code]*note),
	}
}

// Open validates cfg, creates a context and connects it to backend.
func Open(cfg Config, backend audio.Backend) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx := audio.NewContext(audio.SampleRate)
	e := New(cfg, ctx)
	if err := ctx.Start(backend); err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Context returns the underlying audio context.
func (e *Engine) Context() *audio.Context { return e.ctx }

// Waveform returns the shape used for notes started from now on.
func (e *Engine) Waveform() audio.WaveType { return e.waveform }

// SetWaveform changes the shape of notes started after the call. Sounding
// notes keep theirs.
func (e *Engine) SetWaveform(w audio.WaveType) { e.waveform = w }

// KeyDown starts a note for code. It returns false, doing nothing, when
// code is not a playable key or is already sounding.
func (e *Engine) KeyDown(code keymap.Code) bool {
	if e.closed {
		return false
	}
	freq, ok := keymap.Frequency(code)
	if !ok {
		return false
	}
	if _, held := e.active[code]; held {
		return false
	}

	env := e.cfg.Envelope
	v := e.ctx.NewVoice(e.waveform, freq, env.InitialLevel)
	now := e.ctx.CurrentTime()
	attackEnd := now + env.Attack.Seconds()

	g := v.Gain()
	g.ExponentialRampToValueAtTime(env.PeakLevel, attackEnd)
	g.SetTargetAtTime(env.SustainLevel, attackEnd, env.Decay.Seconds())
	e.ctx.StartVoice(v)

	e.active[code] = &note{
		code:      code,
		voice:     v,
		target:    env.PeakLevel,
		startedAt: now,
	}
	e.lastKey = code
	e.normalize()
	return true
}

// KeyUp releases the note for code. It returns false, doing nothing, when
// code is not sounding. The registry entry goes away immediately; the
// voice fades out over the release time.
func (e *Engine) KeyUp(code keymap.Code) bool {
	n, ok := e.active[code]
	if !ok {
		return false
	}
	delete(e.active, code)

	now := e.ctx.CurrentTime()
	g := n.voice.Gain()
	g.CancelAndHoldAtTime(now)
	g.SetTargetAtTime(0, now, e.cfg.Envelope.Release.Seconds())

	switch e.cfg.Release {
	case ReleaseStop:
		e.ctx.StopVoice(n.voice, now+e.cfg.StopAfter.Seconds())
	default:
		e.ctx.ReleaseVoice(n.voice)
	}

	e.normalize()
	return true
}

// ReleaseAll sends KeyUp for every sounding key.
func (e *Engine) ReleaseAll() int {
	codes := e.Active()
	for _, code := range codes {
		e.KeyUp(code)
	}
	return len(codes)
}

// normalize scales the master gain so the summed note gains stay under
// MaxOverallGain. It runs after every registry change.
func (e *Engine) normalize() {
	var gainSum float64
	for _, n := range e.active {
		if e.cfg.Normalization == NormalizeTarget {
			gainSum += n.target
		} else {
			gainSum += n.voice.Gain().Value()
		}
	}
	e.ctx.Master().SetValue(e.cfg.MaxOverallGain / math.Max(1, gainSum))
}

// GlobalGain returns the current master gain.
func (e *Engine) GlobalGain() float64 {
	return e.ctx.Master().Value()
}

// IsActive reports whether code is sounding.
func (e *Engine) IsActive(code keymap.Code) bool {
	_, ok := e.active[code]
	return ok
}

// Len returns the number of sounding keys.
func (e *Engine) Len() int { return len(e.active) }

// Active returns the sounding keys in layout order.
func (e *Engine) Active() []keymap.Code {
	codes := make([]keymap.Code, 0, len(e.active))
	for code := range e.active {
		codes = append(codes, code)
	}
	sortByPitch(codes)
	return codes
}

// Notes describes every sounding key in layout order.
func (e *Engine) Notes() []Note {
	out := make([]Note, 0, len(e.active))
	for _, code := range e.Active() {
		n := e.active[code]
		osc := n.voice.Oscillator()
		out = append(out, Note{
			Code:      code,
			Frequency: osc.Frequency(),
			Wave:      osc.Wave(),
			Gain:      n.voice.Gain().Value(),
			Target:    n.target,
			StartedAt: n.startedAt,
		})
	}
	return out
}

// LastKey returns the most recently started key, or "" if none has been
// played yet.
func (e *Engine) LastKey() keymap.Code { return e.lastKey }

// Close releases every note and shuts the audio context down. Further
// KeyDown calls are ignored.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.ReleaseAll()
	e.closed = true
	if err := e.ctx.Close(); err != nil {
		return fmt.Errorf("close audio: %w", err)
	}
	return nil
}

func sortByPitch(codes []keymap.Code) {
	sort.Slice(codes, func(i, j int) bool {
		fi, _ := keymap.Frequency(codes[i])
		fj, _ := keymap.Frequency(codes[j])
		return fi < fj
	})
}
