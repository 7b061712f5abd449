package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "keysynth",
	Short: "A terminal keyboard synthesizer",
	Long: `keysynth turns your computer keyboard into a two-octave polyphonic synthesizer.

The rows Z-M and Q-U play C4 to B5. Each note gets an attack/decay/release envelope,
and the master gain is rebalanced whenever a note starts or stops so chords do not clip.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
