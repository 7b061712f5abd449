// Package keymap maps computer keyboard keys to pitches and colours.
package keymap

import (
	"fmt"
	"strconv"
	"strings"
)

// Code identifies a physical key, e.g. "Z" or "2".
type Code string

// Key is one playable key on the two-octave computer keyboard layout.
type Key struct {
	Code      Code
	Note      string  // pitch name, e.g. "C4"
	Frequency float64 // Hz
	Color     string  // CSS colour name
	Hex       string  // the same colour as #RRGGBB
}

// FirstMIDINote is the MIDI note number of the first key (Z, middle C).
const FirstMIDINote = 60

// Lower row Z..M is C4..B4, upper row Q..U is C5..B5.
var keys = []Key{
	{"Z", "C4", 261.625565300598634, "red", "#FF0000"},
	{"S", "C#4", 277.182630976872096, "orange", "#FFA500"},
	{"X", "D4", 293.664767917407560, "yellow", "#FFFF00"},
	{"D", "D#4", 311.126983722080910, "green", "#008000"},
	{"C", "E4", 329.627556912869929, "blue", "#0000FF"},
	{"V", "F4", 349.228231433003884, "indigo", "#4B0082"},
	{"G", "F#4", 369.994422711634398, "violet", "#EE82EE"},
	{"B", "G4", 391.995435981749294, "brown", "#A52A2A"},
	{"H", "G#4", 415.304697579945138, "pink", "#FFC0CB"},
	{"N", "A4", 440.000000000000000, "purple", "#800080"},
	{"J", "A#4", 466.163761518089916, "cyan", "#00FFFF"},
	{"M", "B4", 493.883301256124111, "teal", "#008080"},
	{"Q", "C5", 523.251130601197269, "lime", "#00FF00"},
	{"2", "C#5", 554.365261953744192, "magenta", "#FF00FF"},
	{"W", "D5", 587.329535834815120, "olive", "#808000"},
	{"3", "D#5", 622.253967444161821, "coral", "#FF7F50"},
	{"E", "E5", 659.255113825739859, "silver", "#C0C0C0"},
	{"R", "F5", 698.456462866007768, "gold", "#FFD700"},
	{"5", "F#5", 739.988845423268797, "orchid", "#DA70D6"},
	{"T", "G5", 783.990871963498588, "skyblue", "#87CEEB"},
	{"6", "G#5", 830.609395159890277, "tomato", "#FF6347"},
	{"Y", "A5", 880.000000000000000, "navy", "#000080"},
	{"7", "A#5", 932.327523036179832, "salmon", "#FA8072"},
	{"U", "B5", 987.766602512248223, "steelblue", "#4682B4"},
}

var byCode = func() map[Code]int {
	m := make(map[Code]int, len(keys))
	for i, k := range keys {
		m[k.Code] = i
	}
	return m
}()

// Keys returns the layout in pitch order. The slice is a copy.
func Keys() []Key {
	out := make([]Key, len(keys))
	copy(out, keys)
	return out
}

// Lookup returns the key for a canonical code.
func Lookup(code Code) (Key, bool) {
	i, ok := byCode[code]
	if !ok {
		return Key{}, false
	}
	return keys[i], true
}

// Frequency returns the pitch of code in Hz, or false for unknown keys.
func Frequency(code Code) (float64, bool) {
	k, ok := Lookup(code)
	return k.Frequency, ok
}

// Color returns the hex colour of code, or false for unknown keys.
func Color(code Code) (string, bool) {
	k, ok := Lookup(code)
	return k.Hex, ok
}

// Normalize turns a terminal key string ("z") or a browser numeric key
// code ("90") into a canonical Code. The result is not guaranteed to be
// in the layout; use Lookup for that.
func Normalize(s string) Code {
	if len(s) >= 2 {
		if n, err := strconv.Atoi(s); err == nil && n >= '0' && n <= 'Z' {
			return Code(string(rune(n)))
		}
	}
	return Code(strings.ToUpper(s))
}

// FromMIDI maps a MIDI note number onto the layout.
func FromMIDI(note uint8) (Code, bool) {
	i := int(note) - FirstMIDINote
	if i < 0 || i >= len(keys) {
		return "", false
	}
	return keys[i].Code, true
}

// MIDINote is the inverse of FromMIDI.
func MIDINote(code Code) (uint8, bool) {
	i, ok := byCode[code]
	if !ok {
		return 0, false
	}
	return uint8(FirstMIDINote + i), true //nolint:gosec // i is bounded by the layout size
}

func (k Key) String() string {
	return fmt.Sprintf("%s %-3s %8.2f Hz", k.Code, k.Note, k.Frequency)
}
