package audio

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestRenderAdvancesClock(t *testing.T) {
	c := NewContext(1000)
	if got := c.CurrentTime(); got != 0 {
		t.Errorf("Expected clock at 0, got %f", got)
	}
	c.Render(make([]float32, 250))
	if got := c.CurrentTime(); !almostEqual(got, 0.25) {
		t.Errorf("Expected clock at 0.25s, got %f", got)
	}
}

func TestRenderMixesVoicesThroughMaster(t *testing.T) {
	c := NewContext(1000)
	c.Master().SetValue(0.5)

	v := c.NewVoice(WaveSquare, 10, 0.5)
	c.StartVoice(v)

	out := make([]float32, 10)
	c.Render(out)
	for i, s := range out {
		if !almostEqual(float64(s), 0.25) {
			t.Fatalf("Sample %d: expected 0.25, got %f", i, s)
		}
	}

	tap := make([]float32, 10)
	c.Analyser().TimeDomain(tap)
	for i, s := range tap {
		if !almostEqual(float64(s), 0.5) {
			t.Fatalf("Tap sample %d: expected pre-master 0.5, got %f", i, s)
		}
	}
}

func TestRenderClips(t *testing.T) {
	c := NewContext(1000)
	for i := 0; i < 4; i++ {
		c.StartVoice(c.NewVoice(WaveSquare, 10, 1))
	}
	out := make([]float32, 5)
	c.Render(out)
	for _, s := range out {
		if s != 1 {
			t.Fatalf("Expected clipped output 1, got %f", s)
		}
	}
}

func TestStoppedVoiceIsReaped(t *testing.T) {
	c := NewContext(1000)
	v := c.NewVoice(WaveSine, 100, 1)
	c.StartVoice(v)
	c.StopVoice(v, 0.1)

	c.Render(make([]float32, 50))
	if got := c.Voices(); got != 1 {
		t.Errorf("Expected voice to sound until its stop time, got %d voices", got)
	}
	c.Render(make([]float32, 60))
	if got := c.Voices(); got != 0 {
		t.Errorf("Expected stopped voice to be reaped, got %d voices", got)
	}
}

func TestRingOutVoiceIsReapedWhenSilent(t *testing.T) {
	c := NewContext(1000)
	v := c.NewVoice(WaveSine, 100, 1)
	c.StartVoice(v)
	c.ReleaseVoice(v)
	v.Gain().SetTargetAtTime(0, 0, 0.05)

	c.Render(make([]float32, 100))
	if got := c.Voices(); got != 1 {
		t.Errorf("Expected ring-out voice to keep sounding, got %d voices", got)
	}

	// 1e-4 is reached after ln(1e4) ~ 9.2 time constants
	c.Render(make([]float32, 500))
	if got := c.Voices(); got != 0 {
		t.Errorf("Expected silent ring-out voice to be reaped, got %d voices", got)
	}
}

func TestUnreleasedVoiceIsNotReaped(t *testing.T) {
	c := NewContext(1000)
	v := c.NewVoice(WaveSine, 100, 0)
	c.StartVoice(v)
	c.Render(make([]float32, 1000))
	if got := c.Voices(); got != 1 {
		t.Errorf("Expected held voice to stay in the graph, got %d voices", got)
	}
}

func TestStartVoiceTwiceIsNoop(t *testing.T) {
	c := NewContext(1000)
	v := c.NewVoice(WaveSine, 100, 1)
	c.StartVoice(v)
	c.StartVoice(v)
	if got := c.Voices(); got != 1 {
		t.Errorf("Expected one voice, got %d", got)
	}
}

func TestReadProducesStereoPCM(t *testing.T) {
	c := NewContext(1000)
	c.StartVoice(c.NewVoice(WaveSquare, 10, 1))

	buf := make([]byte, 4*8+2)
	n, err := c.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(buf) {
		t.Errorf("Expected %d bytes, got %d", len(buf), n)
	}
	left := int16(uint16(buf[0]) | uint16(buf[1])<<8)
	right := int16(uint16(buf[2]) | uint16(buf[3])<<8)
	if left != 32767 || right != 32767 {
		t.Errorf("Expected full-scale frame, got L=%d R=%d", left, right)
	}
	if buf[len(buf)-1] != 0 || buf[len(buf)-2] != 0 {
		t.Error("Expected trailing partial frame to be zeroed")
	}
	if got := c.CurrentTime(); !almostEqual(got, 0.008) {
		t.Errorf("Expected 8 frames rendered, clock at %f", got)
	}
}

func TestOscillatorWaveforms(t *testing.T) {
	tests := []struct {
		wave  WaveType
		phase float64
		want  float64
	}{
		{WaveSine, 0.25, 1},
		{WaveSine, 0.75, -1},
		{WaveSawtooth, 0, -1},
		{WaveSawtooth, 0.5, 0},
		{WaveSquare, 0.1, 1},
		{WaveSquare, 0.6, -1},
		{WaveTriangle, 0, -1},
		{WaveTriangle, 0.5, 1},
	}
	for _, tt := range tests {
		if got := generateWave(tt.wave, tt.phase); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s at phase %.2f = %f, want %f", tt.wave, tt.phase, got, tt.want)
		}
	}
}

func TestParseWaveType(t *testing.T) {
	for _, w := range []WaveType{WaveSine, WaveSquare, WaveSawtooth, WaveTriangle} {
		got, err := ParseWaveType(w.String())
		if err != nil || got != w {
			t.Errorf("ParseWaveType(%q) = %v, %v", w.String(), got, err)
		}
	}
	if got, err := ParseWaveType("Saw"); err != nil || got != WaveSawtooth {
		t.Errorf("Expected saw alias, got %v, %v", got, err)
	}
	if _, err := ParseWaveType("noise"); !errors.Is(err, ErrUnknownWaveform) {
		t.Errorf("Expected ErrUnknownWaveform, got %v", err)
	}
}

func TestNullBackendAdvancesClock(t *testing.T) {
	c := NewContext(SampleRate)
	b := NewNullBackend(SampleRate)
	if err := c.Start(b); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.CurrentTime() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.CurrentTime() == 0 {
		t.Error("Expected the null backend to pull audio")
	}
	if err := c.Start(b); err == nil {
		t.Error("Expected Start on a closed context to fail")
	}
}

func TestErrUnavailableWraps(t *testing.T) {
	err := errors.Join(ErrUnavailable, errors.New("no device"))
	if !errors.Is(err, ErrUnavailable) {
		t.Error("Expected errors.Is to match ErrUnavailable")
	}
}
