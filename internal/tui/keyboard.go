package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/icco/keysynth/internal/keymap"
)

// One octave of the computer keyboard: white keys and the black key that
// follows each of them ("" where the piano has none).
type octave struct {
	white [7]keymap.Code
	black [7]keymap.Code
}

var octaves = []octave{
	{
		white: [7]keymap.Code{"Z", "X", "C", "V", "B", "N", "M"},
		black: [7]keymap.Code{"S", "D", "", "G", "H", "J", ""},
	},
	{
		white: [7]keymap.Code{"Q", "W", "E", "R", "T", "Y", "U"},
		black: [7]keymap.Code{"2", "3", "", "5", "6", "7", ""},
	},
}

var (
	whiteStyle  = lipgloss.NewStyle().Background(lipgloss.Color("#FFFFFF")).Foreground(lipgloss.Color("#000000"))
	blackStyle  = lipgloss.NewStyle().Background(lipgloss.Color("#000000")).Foreground(lipgloss.Color("#FFFFFF"))
	activeWhite = lipgloss.NewStyle().Background(lipgloss.Color("#00FF00")).Foreground(lipgloss.Color("#000000"))
	activeBlack = lipgloss.NewStyle().Background(lipgloss.Color("#00AA00")).Foreground(lipgloss.Color("#FFFFFF"))
)

// renderKeyboard draws two octaves with the sounding keys highlighted.
// With colored set, active keys take their own colour from the key map.
func renderKeyboard(active map[keymap.Code]bool, colored bool) string {
	var top, bottom []string

	for _, oct := range octaves {
		for i, code := range oct.white {
			bottom = append(bottom, keyCell(code, active[code], colored, whiteStyle, activeWhite))

			if b := oct.black[i]; b != "" {
				top = append(top, keyCell(b, active[b], colored, blackStyle, activeBlack))
			} else {
				top = append(top, "   ")
			}
		}
	}

	// black keys sit between the white keys below them
	return "  " + strings.Join(top, " ") + "\n" + strings.Join(bottom, " ")
}

func keyCell(code keymap.Code, on, colored bool, idle, lit lipgloss.Style) string {
	label := fmt.Sprintf(" %s ", code)
	if !on {
		return idle.Render(label)
	}
	if colored {
		if hex, ok := keymap.Color(code); ok {
			return lit.Background(lipgloss.Color(hex)).Render(label)
		}
	}
	return lit.Render(label)
}

// renderMeter draws value as a bar scaled to max.
func renderMeter(value, max float64, width int) string {
	if max <= 0 || width <= 0 {
		return ""
	}
	frac := value / max
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	filled := int(frac*float64(width) + 0.5)
	return meterStyle.Render(strings.Repeat("█", filled)) +
		meterEmptyStyle.Render(strings.Repeat("─", width-filled)) +
		fmt.Sprintf(" %.2f", value)
}
