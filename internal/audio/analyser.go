package audio

import "sync"

// FFTSize is the number of most recent samples an Analyser keeps.
const FFTSize = 2048

// Analyser is a non-destructive tap on the mixed signal. It keeps the last
// FFTSize samples for display.
type Analyser struct {
	mu  sync.Mutex
	buf [FFTSize]float32
	pos int // next write index
}

// FrequencyBinCount mirrors the browser analyser: half of FFTSize.
func (a *Analyser) FrequencyBinCount() int { return FFTSize / 2 }

func (a *Analyser) write(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.buf[a.pos] = s
		a.pos = (a.pos + 1) % FFTSize
	}
}

// TimeDomain copies the most recent len(dst) samples into dst, oldest
// first. At most FFTSize samples are copied; the count is returned.
func (a *Analyser) TimeDomain(dst []float32) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(dst)
	if n > FFTSize {
		n = FFTSize
	}
	start := (a.pos - n + FFTSize) % FFTSize
	for i := 0; i < n; i++ {
		dst[i] = a.buf[(start+i)%FFTSize]
	}
	return n
}

// ByteTimeDomain is TimeDomain scaled to unsigned bytes with 128 as zero.
func (a *Analyser) ByteTimeDomain(dst []byte) int {
	tmp := make([]float32, len(dst))
	n := a.TimeDomain(tmp)
	for i := 0; i < n; i++ {
		v := 128 + tmp[i]*128
		switch {
		case v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		dst[i] = byte(v)
	}
	return n
}
