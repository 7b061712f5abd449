package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Backend pulls rendered audio from a reader and sends it somewhere.
type Backend interface {
	Start(r io.Reader) error
	Close() error
}

// OtoBackend plays audio on the default output device.
type OtoBackend struct {
	mu         sync.Mutex
	ctx        *oto.Context
	player     *oto.Player
	sampleRate int
}

// NewOtoBackend opens the default output device. Failures wrap
// ErrUnavailable.
func NewOtoBackend(sampleRate int) (*OtoBackend, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   20 * time.Millisecond,
	}

	otoCtx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	<-readyChan

	return &OtoBackend{ctx: otoCtx, sampleRate: sampleRate}, nil
}

// Start begins streaming from r.
func (b *OtoBackend) Start(r io.Reader) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.player != nil {
		return nil
	}
	b.player = b.ctx.NewPlayer(r)
	// 10ms of 16-bit stereo keeps key-to-sound latency low
	b.player.SetBufferSize(b.sampleRate / 100 * channelCount * bitDepth)
	b.player.Play()
	return nil
}

// Close pauses playback and suspends the device.
func (b *OtoBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.player != nil {
		b.player.Pause()
		b.player = nil
	}
	if err := b.ctx.Suspend(); err != nil {
		return fmt.Errorf("suspend audio: %w", err)
	}
	return nil
}

// NullBackend pulls audio in real time and discards it, so the clock runs
// without a sound device.
type NullBackend struct {
	SampleRate int
	Period     time.Duration

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewNullBackend returns a backend that reads every 10ms.
func NewNullBackend(sampleRate int) *NullBackend {
	return &NullBackend{SampleRate: sampleRate, Period: 10 * time.Millisecond}
}

// Start launches the pulling goroutine.
func (b *NullBackend) Start(r io.Reader) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stop != nil {
		return nil
	}
	frames := int(float64(b.SampleRate) * b.Period.Seconds())
	if frames <= 0 {
		return fmt.Errorf("null backend: period %v too short", b.Period)
	}
	buf := make([]byte, frames*channelCount*bitDepth)
	b.stop = make(chan struct{})
	stop := b.stop

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.Period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, err := r.Read(buf); err != nil {
					return
				}
			}
		}
	}()
	return nil
}

// Close stops the goroutine and waits for it to exit.
func (b *NullBackend) Close() error {
	b.mu.Lock()
	if b.stop != nil {
		close(b.stop)
		b.stop = nil
	}
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}
