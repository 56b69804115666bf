package main

import (
	"fmt"
	"io"

	"github.com/ayusman/tagfollower/internal/detector"
	"github.com/ayusman/tagfollower/internal/publish"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports available for the motor link",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printPorts(cmd.OutOrStdout(), publish.SerialPorts)
	},
}

var dictionariesCmd = &cobra.Command{
	Use:   "dictionaries",
	Short: "List supported marker dictionaries",
	Run: func(cmd *cobra.Command, args []string) {
		printDictionaries(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(portsCmd, dictionariesCmd)
}

// printPorts writes one port per line, as reported by list.
func printPorts(out io.Writer, list func() ([]string, error)) error {
	ports, err := list()
	if err != nil {
		return fmt.Errorf("list serial ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Fprintln(out, "No serial ports found.")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(out, p)
	}
	return nil
}

func printDictionaries(out io.Writer) {
	for _, name := range detector.Dictionaries() {
		fmt.Fprintln(out, name)
	}
}
