package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/icco/keysynth/internal/keymap"
)

// midiNoteMsg is sent when a mapped note arrives on the MIDI port.
type midiNoteMsg struct {
	code    keymap.Code
	on      bool
	channel uint8
	note    uint8
}

// midiAllOffMsg is sent for CC 123 (all notes off).
type midiAllOffMsg struct{}

type midiOpenedMsg struct {
	in  *midiInput
	err error
}

// midiInput is a virtual MIDI input port feeding the program.
type midiInput struct {
	driver *rtmididrv.Driver
	port   drivers.In
	stop   func()
}

// openMIDI creates a virtual input port called name and forwards every
// translated message to send.
func openMIDI(name string, send func(tea.Msg)) (*midiInput, error) {
	driver, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MIDI driver: %w", err)
	}

	port, err := driver.OpenVirtualIn(name)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("failed to create virtual MIDI port: %w", err)
	}

	stop, err := port.Listen(func(data []byte, _ int32) {
		if msg, ok := translateMIDI(data); ok {
			send(msg)
		}
	}, drivers.ListenConfig{})
	if err != nil {
		port.Close()
		driver.Close()
		return nil, fmt.Errorf("failed to listen to MIDI port: %w", err)
	}

	return &midiInput{driver: driver, port: port, stop: stop}, nil
}

// translateMIDI maps raw MIDI bytes to program messages. Notes outside the
// keyboard layout and other message types are dropped.
func translateMIDI(data []byte) (tea.Msg, bool) {
	msg := midi.Message(data)
	var channel, key, velocity, controller, value uint8

	switch {
	case msg.GetNoteStart(&channel, &key, &velocity):
		code, ok := keymap.FromMIDI(key)
		if !ok {
			return nil, false
		}
		return midiNoteMsg{code: code, on: true, channel: channel, note: key}, true
	case msg.GetNoteEnd(&channel, &key):
		code, ok := keymap.FromMIDI(key)
		if !ok {
			return nil, false
		}
		return midiNoteMsg{code: code, channel: channel, note: key}, true
	case msg.GetControlChange(&channel, &controller, &value):
		if controller == 123 {
			return midiAllOffMsg{}, true
		}
	}
	return nil, false
}

func (mi *midiInput) String() string {
	if mi == nil || mi.port == nil {
		return ""
	}
	return mi.port.String()
}

func (mi *midiInput) Close() {
	if mi == nil {
		return
	}
	if mi.stop != nil {
		mi.stop()
	}
	if mi.port != nil {
		_ = mi.port.Close()
	}
	if mi.driver != nil {
		mi.driver.Close()
	}
}
