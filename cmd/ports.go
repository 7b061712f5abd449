package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // registers the driver
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI input ports",
	Long: `List the MIDI input ports visible to keysynth.

Use "keysynth play --midi NAME" to open a virtual port of your own that other
software can send notes to.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		defer midi.CloseDriver()
		return printPorts(cmd.OutOrStdout(), midi.GetInPorts())
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func printPorts(w io.Writer, ports midi.InPorts) error {
	if len(ports) == 0 {
		_, err := fmt.Fprintln(w, "No MIDI input ports found")
		return err
	}
	for _, p := range ports {
		if _, err := fmt.Fprintf(w, "%d: %s\n", p.Number(), p.String()); err != nil {
			return err
		}
	}
	return nil
}
