package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/icco/keysynth/internal/audio"
	"github.com/icco/keysynth/internal/engine"
	"github.com/icco/keysynth/internal/tui"
)

type playFlags struct {
	preset       string
	waveform     string
	normalize    string
	release      string
	latch        bool
	releaseAfter time.Duration
	fps          int
	scope        bool
	scopeSet     bool
	headless     bool
	autoStart    bool
	midiPort     string
	logFile      string
}

var play playFlags

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play the keyboard synthesizer",
	Long: `Start the synthesizer with an interactive TUI.

Press enter to start audio, then play with Z S X D C V G B H N J M (C4-B4)
and Q 2 W 3 E R 5 T 6 Y 7 U (C5-B5). Terminals do not report key releases, so a
note ends once its key stops auto-repeating; use --latch to toggle notes instead.

Example:
  keysynth play --preset classic --waveform sawtooth
  keysynth play --midi "Keysynth In"
`,
	RunE: runPlay,
}

func init() {
	f := playCmd.Flags()
	f.StringVarP(&play.preset, "preset", "p", "scope", "Configuration preset (classic, scope)")
	f.StringVarP(&play.waveform, "waveform", "w", "", "Initial waveform (sine, sawtooth, square, triangle)")
	f.StringVar(&play.normalize, "normalize", "", "Gain normalization source (instantaneous, target)")
	f.StringVar(&play.release, "release", "", "Release behaviour (ring-out, stop)")
	f.BoolVarP(&play.latch, "latch", "l", false, "Each key press toggles its note")
	f.DurationVar(&play.releaseAfter, "release-after", tui.DefaultReleaseAfter, "Release a key after this long without auto-repeat")
	f.IntVar(&play.fps, "fps", 30, "Display refresh rate")
	f.BoolVar(&play.scope, "scope", false, "Show the waveform scope (default from preset)")
	f.BoolVar(&play.headless, "headless", false, "Run the audio clock without an output device")
	f.BoolVar(&play.autoStart, "start", false, "Start audio immediately")
	f.StringVarP(&play.midiPort, "midi", "m", "", "Open a virtual MIDI input port with this name")
	f.StringVar(&play.logFile, "log", "", "Write a debug log to this file")
	rootCmd.AddCommand(playCmd)
}

// options resolves the flags against the chosen preset.
func (p playFlags) options() (tui.Options, error) {
	cfg, err := engine.Preset(p.preset)
	if err != nil {
		return tui.Options{}, err
	}
	if p.waveform != "" {
		if cfg.Waveform, err = audio.ParseWaveType(p.waveform); err != nil {
			return tui.Options{}, err
		}
	}
	if p.normalize != "" {
		if cfg.Normalization, err = engine.ParseNormalization(p.normalize); err != nil {
			return tui.Options{}, err
		}
	}
	if p.release != "" {
		if cfg.Release, err = engine.ParseReleaseMode(p.release); err != nil {
			return tui.Options{}, err
		}
		if cfg.Release == engine.ReleaseStop && cfg.StopAfter == 0 {
			cfg.StopAfter = 5 * cfg.Envelope.Release
		}
	}
	if p.scopeSet {
		cfg.Scope = p.scope
	}
	if err := cfg.Validate(); err != nil {
		return tui.Options{}, err
	}

	headless := p.headless
	return tui.Options{
		Config: cfg,
		Open: func(cfg engine.Config) (*engine.Engine, error) {
			return engine.Open(cfg, newBackend(headless))
		},
		Latch:        p.latch,
		ReleaseAfter: p.releaseAfter,
		FPS:          p.fps,
		AutoStart:    p.autoStart,
		MIDIPort:     p.midiPort,
	}, nil
}

// newBackend falls back to the null backend only when asked to; a missing
// device is otherwise reported to the user.
func newBackend(headless bool) audio.Backend {
	if headless {
		return audio.NewNullBackend(audio.SampleRate)
	}
	return &lazyOto{}
}

// lazyOto opens the device on Start so the error surfaces through the
// engine's start path.
type lazyOto struct{ b *audio.OtoBackend }

func (l *lazyOto) Start(r io.Reader) error {
	b, err := audio.NewOtoBackend(audio.SampleRate)
	if err != nil {
		return err
	}
	l.b = b
	return b.Start(r)
}

func (l *lazyOto) Close() error {
	if l.b == nil {
		return nil
	}
	return l.b.Close()
}

// setupLogging sends the standard logger to path, or discards it: the TUI
// owns the terminal.
func setupLogging(path string) (func() error, error) {
	if path == "" {
		log.SetOutput(io.Discard)
		return func() error { return nil }, nil
	}
	f, err := tea.LogToFile(path, "keysynth")
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f.Close, nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	play.scopeSet = cmd.Flags().Changed("scope")
	opts, err := play.options()
	if err != nil {
		return err
	}

	closeLog, err := setupLogging(play.logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	m := tui.NewModel(opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.SetProgram(p) // Store reference so MIDI callback can send messages

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		p.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	}()

	_, runErr := p.Run()
	// teardown happens here, after the event loop has stopped
	closeErr := m.Close()
	if runErr != nil {
		return fmt.Errorf("error running program: %w", runErr)
	}
	return closeErr
}
