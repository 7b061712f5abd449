package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/icco/keysynth/internal/audio"
	"github.com/icco/keysynth/internal/keymap"
)

const testRate = 1000

func newTestEngine(t *testing.T, preset string) *Engine {
	t.Helper()
	cfg, err := Preset(preset)
	if err != nil {
		t.Fatalf("Preset(%q): %v", preset, err)
	}
	return New(cfg, audio.NewContext(testRate))
}

// advance renders d worth of audio so the context clock moves forward.
func advance(e *Engine, d time.Duration) {
	e.Context().Render(make([]float32, int(d.Seconds()*testRate)))
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestUnknownKeysAreIgnored(t *testing.T) {
	e := newTestEngine(t, "scope")

	for _, code := range []keymap.Code{"A", "1", "", "F1"} {
		if e.KeyDown(code) {
			t.Errorf("Expected KeyDown(%q) to be a no-op", code)
		}
		if e.KeyUp(code) {
			t.Errorf("Expected KeyUp(%q) to be a no-op", code)
		}
	}
	if e.Len() != 0 {
		t.Errorf("Expected empty registry, got %d", e.Len())
	}
	if got := e.Context().Voices(); got != 0 {
		t.Errorf("Expected no voices, got %d", got)
	}
	if got := e.GlobalGain(); !near(got, DefaultMaxOverallGain) {
		t.Errorf("Expected global gain %.2f, got %f", DefaultMaxOverallGain, got)
	}
}

func TestKeyDownIsIdempotent(t *testing.T) {
	e := newTestEngine(t, "scope")

	if !e.KeyDown("Z") {
		t.Fatal("Expected first KeyDown to start a note")
	}
	if e.KeyDown("Z") {
		t.Error("Expected repeated KeyDown to be a no-op")
	}
	if e.Len() != 1 {
		t.Errorf("Expected registry size 1, got %d", e.Len())
	}
	if got := e.Context().Voices(); got != 1 {
		t.Errorf("Expected one voice, got %d", got)
	}
}

func TestKeyUpInactiveIsNoop(t *testing.T) {
	e := newTestEngine(t, "scope")
	e.KeyDown("Z")
	e.KeyDown("S")
	before := e.GlobalGain()

	if e.KeyUp("X") {
		t.Error("Expected KeyUp of an inactive key to be a no-op")
	}
	if e.Len() != 2 {
		t.Errorf("Expected registry size 2, got %d", e.Len())
	}
	if got := e.GlobalGain(); got != before {
		t.Errorf("Expected global gain unchanged at %f, got %f", before, got)
	}
}

func TestTwoKeyScenario(t *testing.T) {
	e := newTestEngine(t, "scope")

	e.KeyDown("Z")
	if got := e.Active(); len(got) != 1 || got[0] != "Z" {
		t.Fatalf("Expected registry {Z}, got %v", got)
	}
	if got := e.GlobalGain(); !near(got, 0.8) {
		t.Errorf("Expected global gain 0.8 with one note, got %f", got)
	}

	e.KeyDown("S")
	if got := e.Active(); len(got) != 2 || got[0] != "Z" || got[1] != "S" {
		t.Fatalf("Expected registry {Z,S}, got %v", got)
	}
	// both notes start at gain 1, so the sum is 2
	if got := e.GlobalGain(); !near(got, 0.4) {
		t.Errorf("Expected global gain 0.4 with two fresh notes, got %f", got)
	}

	e.KeyUp("Z")
	if got := e.Active(); len(got) != 1 || got[0] != "S" {
		t.Fatalf("Expected registry {S}, got %v", got)
	}
	if got := e.GlobalGain(); !near(got, 0.8) {
		t.Errorf("Expected global gain back at 0.8, got %f", got)
	}
}

func TestGlobalGainFollowsSumOfCurrentGains(t *testing.T) {
	codes := []keymap.Code{"Z", "X", "C", "V", "B", "N", "M"}

	for n := 1; n <= len(codes); n++ {
		e := newTestEngine(t, "classic")
		for i, code := range codes[:n] {
			e.KeyDown(code)
			advance(e, time.Duration(i+1)*7*time.Millisecond)
		}
		if e.Len() != n {
			t.Fatalf("Expected registry size %d, got %d", n, e.Len())
		}

		// the clock moved after the last KeyDown, so recompute from the
		// gains that were current at that moment
		var sum float64
		last := e.active[codes[n-1]].startedAt
		for _, nt := range e.active {
			sum += nt.voice.Gain().ValueAt(last)
		}
		want := DefaultMaxOverallGain / math.Max(1, sum)
		if got := e.GlobalGain(); !near(got, want) {
			t.Errorf("n=%d: expected global gain %f, got %f", n, want, got)
		}
	}
}

func TestInstantaneousNormalizationLagsAttack(t *testing.T) {
	e := newTestEngine(t, "scope")

	e.KeyDown("Z")
	advance(e, 200*time.Millisecond) // end of attack: Z at its 0.4 peak
	e.KeyDown("S")                   // S still at its initial 1.0

	if got, want := e.GlobalGain(), 0.8/1.4; !near(got, want) {
		t.Errorf("Expected global gain %f, got %f", want, got)
	}
}

func TestTargetNormalization(t *testing.T) {
	cfg, _ := Preset("scope")
	cfg.Normalization = NormalizeTarget
	e := New(cfg, audio.NewContext(testRate))

	for _, code := range []keymap.Code{"Z", "S", "X"} {
		e.KeyDown(code)
	}
	// three peaks of 0.4 sum to 1.2
	if got, want := e.GlobalGain(), 0.8/1.2; !near(got, want) {
		t.Errorf("Expected global gain %f, got %f", want, got)
	}
	for _, n := range e.Notes() {
		if n.Target != 0.4 {
			t.Errorf("Expected target 0.4 for %s, got %f", n.Code, n.Target)
		}
	}
}

func TestEnvelopeShape(t *testing.T) {
	e := newTestEngine(t, "scope")
	e.KeyDown("N")
	g := e.active["N"].voice.Gain()

	if got := g.Value(); !near(got, 1) {
		t.Errorf("Expected initial level 1, got %f", got)
	}
	advance(e, 200*time.Millisecond)
	if got := g.Value(); !near(got, 0.4) {
		t.Errorf("Expected peak 0.4 after attack, got %f", got)
	}
	advance(e, 5*time.Second)
	if got := g.Value(); math.Abs(got-0.2) > 1e-4 {
		t.Errorf("Expected sustain 0.2, got %f", got)
	}

	e.KeyUp("N")
	held := g.Value()
	advance(e, 50*time.Millisecond)
	if got := g.Value(); math.Abs(got-held*math.Exp(-1)) > 1e-4 {
		t.Errorf("Expected one release constant to reach %f, got %f", held*math.Exp(-1), got)
	}
}

func TestWaveformChangeOnlyAffectsNewNotes(t *testing.T) {
	e := newTestEngine(t, "scope")
	e.KeyDown("Z")
	e.SetWaveform(audio.WaveSawtooth)
	e.KeyDown("S")

	waves := map[keymap.Code]audio.WaveType{}
	for _, n := range e.Notes() {
		waves[n.Code] = n.Wave
	}
	if waves["Z"] != audio.WaveSine {
		t.Errorf("Expected Z to keep sine, got %s", waves["Z"])
	}
	if waves["S"] != audio.WaveSawtooth {
		t.Errorf("Expected S to use sawtooth, got %s", waves["S"])
	}
	if e.Waveform() != audio.WaveSawtooth {
		t.Errorf("Expected engine waveform sawtooth, got %s", e.Waveform())
	}
}

func TestReleaseAllRingOut(t *testing.T) {
	e := newTestEngine(t, "scope")
	for _, code := range []keymap.Code{"Z", "S", "X", "D"} {
		e.KeyDown(code)
	}
	advance(e, 100*time.Millisecond)

	if got := e.ReleaseAll(); got != 4 {
		t.Errorf("Expected 4 released notes, got %d", got)
	}
	if e.Len() != 0 {
		t.Errorf("Expected empty registry, got %d", e.Len())
	}
	if got := e.Context().Voices(); got != 4 {
		t.Errorf("Expected voices to ring out, got %d in the graph", got)
	}
	advance(e, 2*time.Second)
	if got := e.Context().Voices(); got != 0 {
		t.Errorf("Expected silent voices to be reaped, got %d", got)
	}
	if got := e.GlobalGain(); !near(got, 0.8) {
		t.Errorf("Expected global gain 0.8 with no notes, got %f", got)
	}
}

func TestReleaseStopsOscillator(t *testing.T) {
	e := newTestEngine(t, "classic")
	e.KeyDown("Q")
	advance(e, 100*time.Millisecond)
	e.KeyUp("Q")

	advance(e, 400*time.Millisecond)
	if got := e.Context().Voices(); got != 1 {
		t.Errorf("Expected voice to sound until stop time, got %d", got)
	}
	advance(e, 200*time.Millisecond)
	if got := e.Context().Voices(); got != 0 {
		t.Errorf("Expected stopped voice to be removed, got %d", got)
	}
}

func TestRetriggerAfterRelease(t *testing.T) {
	e := newTestEngine(t, "scope")
	e.KeyDown("Z")
	e.KeyUp("Z")
	if !e.KeyDown("Z") {
		t.Error("Expected KeyDown after KeyUp to start a new note")
	}
	if e.LastKey() != "Z" {
		t.Errorf("Expected last key Z, got %q", e.LastKey())
	}
}

func TestCloseIgnoresFurtherKeys(t *testing.T) {
	e := newTestEngine(t, "scope")
	e.KeyDown("Z")
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if e.Len() != 0 {
		t.Errorf("Expected Close to release notes, got %d", e.Len())
	}
	if e.KeyDown("S") {
		t.Error("Expected KeyDown after Close to be ignored")
	}
	if err := e.Close(); err != nil {
		t.Errorf("Expected second Close to succeed, got %v", err)
	}
}

func TestOpenWithNullBackend(t *testing.T) {
	cfg, _ := Preset("classic")
	e, err := Open(cfg, audio.NewNullBackend(audio.SampleRate))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	if !e.KeyDown("N") {
		t.Error("Expected KeyDown to start a note")
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg, _ := Preset("scope")
	cfg.Envelope.PeakLevel = 0
	if _, err := Open(cfg, audio.NewNullBackend(audio.SampleRate)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		cfg, err := Preset(name)
		if err != nil {
			t.Fatalf("Preset(%q): %v", name, err)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Preset %q does not validate: %v", name, err)
		}
	}
	if _, err := Preset("organ"); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("Expected ErrUnknownPreset, got %v", err)
	}

	scope, _ := Preset("SCOPE")
	if !scope.Scope || scope.Release != ReleaseRingOut {
		t.Error("Expected scope preset to ring out with the scope on")
	}
	classic, _ := Preset("classic")
	if classic.Scope || classic.Release != ReleaseStop {
		t.Error("Expected classic preset to stop oscillators with the scope off")
	}
}

func TestParseModes(t *testing.T) {
	if n, err := ParseNormalization("target"); err != nil || n != NormalizeTarget {
		t.Errorf("ParseNormalization(target) = %v, %v", n, err)
	}
	if _, err := ParseNormalization("peak"); !errors.Is(err, ErrUnknownNormalization) {
		t.Errorf("Expected ErrUnknownNormalization, got %v", err)
	}
	if r, err := ParseReleaseMode("stop"); err != nil || r != ReleaseStop {
		t.Errorf("ParseReleaseMode(stop) = %v, %v", r, err)
	}
	if _, err := ParseReleaseMode("fade"); !errors.Is(err, ErrUnknownRelease) {
		t.Errorf("Expected ErrUnknownRelease, got %v", err)
	}
}
