// Package tui is the terminal front end: it turns key presses into engine
// note events and draws the keyboard, gain meter and waveform scope.
package tui

import (
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/icco/keysynth/internal/audio"
	"github.com/icco/keysynth/internal/engine"
	"github.com/icco/keysynth/internal/keymap"
)

const (
	maxMessageHistory = 20
	shownMessages     = 6
	meterWidth        = 40

	// DefaultReleaseAfter is longer than the X11 default auto-repeat
	// delay of 660ms.
	DefaultReleaseAfter = 750 * time.Millisecond
)

// Options configures the front end.
type Options struct {
	Config engine.Config
	// Open creates the engine when the user starts audio.
	Open func(engine.Config) (*engine.Engine, error)

	Latch        bool          // every press toggles its note
	ReleaseAfter time.Duration // key-up inferred after this much silence
	FPS          int
	AutoStart    bool
	MIDIPort     string // virtual MIDI input name, "" for none
}

// Model is the bubbletea model for the synth.
type Model struct {
	opts     Options
	engine   *engine.Engine
	starting bool
	quitting bool
	err      error

	loop    *frameLoop // scope redraw
	ticker  *frameLoop // release detection and gain meter
	scope   *scope
	release *releaseDetector
	midi    *midiInput

	spring     harmonica.Spring
	meterPos   float64
	meterVel   float64
	background string

	messageHistory []string
	messageCount   int
	width          int
	height         int
	program        *tea.Program // for sending MIDI events from the driver goroutine
}

// startedMsg carries the result of starting audio.
type startedMsg struct {
	engine *engine.Engine
	err    error
}

// NewModel returns a model that has not started audio yet.
func NewModel(opts Options) *Model {
	if opts.ReleaseAfter <= 0 {
		opts.ReleaseAfter = DefaultReleaseAfter
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	return &Model{
		opts:           opts,
		loop:           newFrameLoop(opts.FPS, func(t time.Time) tea.Msg { return frameMsg(t) }),
		ticker:         newFrameLoop(opts.FPS, func(t time.Time) tea.Msg { return tickMsg(t) }),
		scope:          newScope(scopeWidth, scopeHeight),
		release:        newReleaseDetector(opts.ReleaseAfter),
		spring:         harmonica.NewSpring(harmonica.FPS(opts.FPS), 6.0, 0.9),
		meterPos:       opts.Config.MaxOverallGain,
		background:     defaultTitleBackground,
		messageHistory: make([]string, 0, maxMessageHistory),
	}
}

// SetProgram lets MIDI callbacks reach the running program.
func (m *Model) SetProgram(p *tea.Program) { m.program = p }

// Engine returns the running engine, or nil before audio has started.
func (m *Model) Engine() *engine.Engine { return m.engine }

func (m *Model) Init() tea.Cmd {
	if m.opts.AutoStart {
		m.starting = true
		return m.startAudio()
	}
	return nil
}

// startAudio returns a command opening the engine with a snapshot of the
// current config; the command runs off the event goroutine.
func (m *Model) startAudio() tea.Cmd {
	open, cfg := m.opts.Open, m.opts.Config
	return func() tea.Msg {
		e, err := open(cfg)
		if err != nil {
			return startedMsg{err: fmt.Errorf("failed to initialize audio: %w", err)}
		}
		return startedMsg{engine: e}
	}
}

func (m *Model) openMIDI() tea.Msg {
	in, err := openMIDI(m.opts.MIDIPort, func(msg tea.Msg) {
		if m.program != nil {
			m.program.Send(msg)
		}
	})
	return midiOpenedMsg{in: in, err: err}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case startedMsg:
		m.starting = false
		if msg.err != nil {
			m.err = msg.err
			log.Printf("audio start failed: %v", msg.err)
			return m, nil
		}
		if m.quitting {
			if err := msg.engine.Close(); err != nil {
				log.Printf("close: %v", err)
			}
			return m, nil
		}
		m.engine = msg.engine
		// the waveform may have been changed while audio was starting
		m.engine.SetWaveform(m.opts.Config.Waveform)
		m.addMessage(fmt.Sprintf("Audio started (%s preset, %s)", m.opts.Config.Name, m.engine.Waveform()))
		log.Printf("audio started: preset=%s release=%s normalize=%s",
			m.opts.Config.Name, m.opts.Config.Release, m.opts.Config.Normalization)

		cmds := []tea.Cmd{m.ticker.start()}
		if m.opts.Config.Scope {
			cmds = append(cmds, m.loop.start())
		}
		if m.opts.MIDIPort != "" {
			cmds = append(cmds, m.openMIDI)
		}
		return m, tea.Batch(cmds...)

	case midiOpenedMsg:
		if msg.err != nil {
			m.addMessage("MIDI: " + msg.err.Error())
			log.Printf("midi: %v", msg.err)
			return m, nil
		}
		m.midi = msg.in
		m.addMessage("Listening on MIDI port: " + m.midi.String())
		return m, nil

	case midiNoteMsg:
		if msg.on {
			m.noteOn(msg.code, "MIDI")
		} else {
			m.noteOff(msg.code, "MIDI")
		}
		return m, nil

	case midiAllOffMsg:
		m.releaseAll()
		return m, nil

	case frameMsg:
		if !m.loop.running {
			return m, nil
		}
		m.draw()
		return m, m.loop.next()

	case tickMsg:
		if !m.ticker.running {
			return m, nil
		}
		m.tick(time.Time(msg))
		return m, m.ticker.next()

	case tea.KeyMsg:
		return m.handleKey(msg, time.Now())
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg, now time.Time) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}
	switch msg.String() {
	case "ctrl+c", "esc":
		return m.quit()
	case "enter", "f1":
		if m.engine == nil && !m.starting {
			m.starting = true
			m.err = nil
			return m, m.startAudio()
		}
		return m, nil
	case "f2":
		m.setWaveform(audio.WaveSine)
		return m, nil
	case "f3":
		m.setWaveform(audio.WaveSawtooth)
		return m, nil
	case "f4":
		m.setWaveform(audio.WaveSquare)
		return m, nil
	case "f5":
		m.setWaveform(audio.WaveTriangle)
		return m, nil
	case " ", "space":
		m.releaseAll()
		return m, nil
	}

	code := keymap.Normalize(msg.String())
	if _, ok := keymap.Lookup(code); !ok {
		return m, nil
	}
	if m.engine == nil {
		m.addMessage("Press enter to start audio")
		return m, nil
	}

	if m.opts.Latch {
		if m.engine.IsActive(code) {
			m.noteOff(code, "key")
		} else {
			m.noteOn(code, "key")
		}
		return m, nil
	}
	// the detector only tracks notes the keyboard started
	if m.release.press(code, now) && !m.noteOn(code, "key") {
		m.release.forget(code)
	}
	return m, nil
}

// quit stops both loops and releases the notes, then quits. The engine is
// torn down by Close once the program has returned.
func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.loop.stop()
	m.ticker.stop()
	m.releaseAll()
	return m, tea.Quit
}

// tick infers key releases and eases the gain meter.
func (m *Model) tick(now time.Time) {
	if m.engine == nil {
		return
	}
	if !m.opts.Latch {
		for _, code := range m.release.expired(now) {
			m.noteOff(code, "key")
		}
	}
	m.meterPos, m.meterVel = m.spring.Update(m.meterPos, m.meterVel, m.engine.GlobalGain())
}

// draw redraws the scope from the analyser.
func (m *Model) draw() {
	if m.engine == nil || !m.opts.Config.Scope {
		return
	}
	m.scope.update(m.engine.Context().Analyser())
}

func (m *Model) noteOn(code keymap.Code, source string) bool {
	if m.quitting || m.engine == nil || !m.engine.KeyDown(code) {
		return false
	}
	k, _ := keymap.Lookup(code)
	if m.opts.Config.Scope {
		m.background = k.Hex
	}
	m.addMessage(fmt.Sprintf("Note On:  %-2s %-4s %7.2f Hz", code, k.Note, k.Frequency))
	log.Printf("note on: %s (%s) via %s, gain=%.3f", code, k.Note, source, m.engine.GlobalGain())
	return true
}

func (m *Model) noteOff(code keymap.Code, source string) {
	m.release.forget(code)
	if m.engine == nil || !m.engine.KeyUp(code) {
		return
	}
	k, _ := keymap.Lookup(code)
	m.addMessage(fmt.Sprintf("Note Off: %-2s %-4s", code, k.Note))
	log.Printf("note off: %s via %s, gain=%.3f", code, source, m.engine.GlobalGain())
}

func (m *Model) releaseAll() {
	m.release.reset()
	if m.engine == nil {
		return
	}
	if n := m.engine.ReleaseAll(); n > 0 {
		m.addMessage(fmt.Sprintf("Released %d note(s)", n))
	}
}

func (m *Model) setWaveform(w audio.WaveType) {
	m.opts.Config.Waveform = w
	if m.engine != nil {
		m.engine.SetWaveform(w)
	}
	m.addMessage("Waveform: " + w.String())
	log.Printf("waveform: %s", w)
}

func (m *Model) addMessage(message string) {
	m.messageCount++
	// keep most recent at top
	m.messageHistory = append([]string{message}, m.messageHistory...)
	if len(m.messageHistory) > maxMessageHistory {
		m.messageHistory = m.messageHistory[:maxMessageHistory]
	}
}

// Stop ends the scope redraw without quitting. Key releases are still
// detected.
func (m *Model) Stop() { m.loop.stop() }

// Close releases MIDI and audio resources. It must not run concurrently
// with the program; call it after Run returns. It is safe to call twice.
func (m *Model) Close() error {
	m.loop.stop()
	m.ticker.stop()
	m.midi.Close()
	m.midi = nil
	if m.engine == nil {
		return nil
	}
	err := m.engine.Close()
	m.engine = nil
	return err
}

func (m *Model) View() string {
	var b strings.Builder

	title := titleStyle.Background(lipgloss.Color(m.background))
	b.WriteString(title.Render("🎹 KEYSYNTH") + "\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
		b.WriteString(helpStyle.Render("enter: retry • ctrl+c: quit"))
		return b.String()
	}

	if m.engine == nil {
		if m.starting {
			b.WriteString(subtitleStyle.Render("Starting audio...") + "\n")
		} else {
			b.WriteString(statusStyle.Render("Press enter to start audio") + "\n")
		}
		b.WriteString("\n" + renderKeyboard(nil, false) + "\n")
		b.WriteString("\n" + helpStyle.Render("enter/f1: start • ctrl+c: quit"))
		return b.String()
	}

	cfg := m.opts.Config
	b.WriteString(subtitleStyle.Render("Preset: ") + cfg.Name +
		subtitleStyle.Render("  Waveform: ") + m.engine.Waveform().String() +
		subtitleStyle.Render("  Release: ") + cfg.Release.String() +
		subtitleStyle.Render("  Normalize: ") + cfg.Normalization.String() + "\n")
	if m.midi != nil {
		b.WriteString(subtitleStyle.Render("MIDI In: ") + statusStyle.Render(m.midi.String()) + "\n")
	}
	b.WriteString("\n")

	// Active notes display
	notes := m.engine.Notes()
	active := make(map[keymap.Code]bool, len(notes))
	b.WriteString(subtitleStyle.Render("Active Notes:") + "\n")
	if len(notes) == 0 {
		b.WriteString("  (no notes playing)\n")
	} else {
		list := make([]string, 0, len(notes))
		for _, n := range notes {
			active[n.Code] = true
			k, _ := keymap.Lookup(n.Code)
			list = append(list, fmt.Sprintf("%s:%s", n.Code, k.Note))
		}
		b.WriteString("  " + noteStyle.Render(strings.Join(list, " ")) + "\n")
	}

	b.WriteString("\n" + renderKeyboard(active, cfg.Scope) + "\n\n")
	b.WriteString(subtitleStyle.Render("Global Gain: ") + renderMeter(m.meterPos, cfg.MaxOverallGain, meterWidth) + "\n")

	if cfg.Scope {
		b.WriteString("\n" + m.scope.view(lipgloss.Color(m.background)) + "\n")
	}

	// Message history log
	b.WriteString("\n" + subtitleStyle.Render(fmt.Sprintf("Message Log: [%d total]", m.messageCount)) + "\n")
	shown := len(m.messageHistory)
	if shown > shownMessages {
		shown = shownMessages
	}
	for i := 0; i < shown; i++ {
		msg := m.messageHistory[i]
		if i == 0 {
			b.WriteString("  " + logHighlightStyle.Render("▶ "+msg) + "\n")
		} else {
			b.WriteString("  " + logStyle.Render("  "+msg) + "\n")
		}
	}

	// Help
	help := "f2: sine • f3: sawtooth • f4: square • f5: triangle • space: release all • ctrl+c: quit"
	if m.opts.Latch {
		help = "keys toggle notes • " + help
	}
	b.WriteString("\n" + helpStyle.Render(help))

	return b.String()
}
