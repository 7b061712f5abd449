package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/icco/keysynth/internal/keymap"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Print the keyboard layout",
	Long: `Print every playable key with its note, frequency and colour.

The lower row Z to M plays C4 to B4, the upper row Q to U plays C5 to B5.`,
	Run: func(cmd *cobra.Command, args []string) {
		printKeys(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
}

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4")).
	Padding(0, 1)

func printKeys(w io.Writer) {
	fmt.Fprintln(w, headerStyle.Render("KEYSYNTH key layout"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-4s %-5s %-11s %-5s %s\n", "KEY", "NOTE", "FREQ (Hz)", "MIDI", "COLOUR")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	for _, k := range keymap.Keys() {
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(k.Hex)).Render("■")
		note, _ := keymap.MIDINote(k.Code)
		fmt.Fprintf(w, "%-4s %-5s %-11.3f %-5d %s %s\n",
			k.Code, k.Note, k.Frequency, note, swatch, k.Color)
	}
}
