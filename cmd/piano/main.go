package main

import (
	"fmt"
	"os"

	"github.com/JeanRibes/piano/hw"
	"github.com/JeanRibes/piano/music"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"
)

var (
	configPath string
	debug      bool
)

func main() {
	defer midi.CloseDriver()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "piano",
	Short: "Twelve-key recording tone controller",
	Long: `piano scans twelve note keys and a pitch control, sounds the selected
note and records takes it can play back.

The record control cycles Idle -> Recording -> Playing -> Idle.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the instrument",
	Long: `Run the instrument with the peripherals named in the config file.

Examples:
  piano run --config piano.yaml
  piano run --debug`,
	RunE: runRun,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial and MIDI ports",
	RunE:  runPorts,
}

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Print the note table and bend ranges",
	Run: func(cmd *cobra.Command, args []string) {
		for _, n := range music.Notes {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "piano.yaml", "config file (defaults apply when missing)")
	runCmd.Flags().BoolVar(&debug, "debug", false, "debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(notesCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ports, err := hw.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(out, "No serial ports found!")
	}
	for _, port := range ports {
		fmt.Fprintf(out, "Found port: %v\n", port)
	}
	ins, outs := hw.MIDIPorts()
	fmt.Fprintf(out, "MIDI inputs:\n%s\nMIDI outputs:\n%s\n", ins, outs)
	return nil
}
