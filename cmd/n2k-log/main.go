// Command n2k-log views and analyzes relay capture files.
//
// Capture files are written by n2k-server when capture.path is configured
// (or with the --capture flag).
//
// Usage:
//
//	n2k-log <command> [flags] <file.cbor>
//
// Examples:
//
//	# View all events
//	n2k-log view relay.cbor
//
//	# View only lines received from clients
//	n2k-log view --layer transport --direction in relay.cbor
//
//	# Dump the lines one session received, ready for replay
//	n2k-log export --format lines --session abc12345-... relay.cbor
//
//	# Keep only decode drops in a new file
//	n2k-log filter --category drop -o drops.cbor relay.cbor
//
//	# Show statistics
//	n2k-log stats relay.cbor
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/n2k-relay/n2k-go/cmd/n2k-log/commands"
)

var filterFlags commands.FilterFlags

var rootCmd = &cobra.Command{
	Use:           "n2k-log",
	Short:         "N2K relay capture file analyzer",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var viewCmd = &cobra.Command{
	Use:   "view <file.cbor>",
	Short: "View capture file in human-readable format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := filterFlags.Build()
		if err != nil {
			return err
		}
		return commands.RunView(args[0], filter, cmd.OutOrStdout())
	},
}

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <file.cbor>",
	Short: "Export capture file to JSON lines, CSV or plain lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := filterFlags.Build()
		if err != nil {
			return err
		}
		return commands.RunExport(args[0], exportFormat, exportOutput, filter)
	},
}

var filterOutput string

var filterCmd = &cobra.Command{
	Use:   "filter <file.cbor>",
	Short: "Filter capture file and write to new file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := filterFlags.Build()
		if err != nil {
			return err
		}
		n, err := commands.RunFilter(args[0], filterOutput, filter)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Filtered %d events to %s\n", n, filterOutput)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <file.cbor>",
	Short: "Show statistics about the capture file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := filterFlags.Build()
		if err != nil {
			return err
		}
		return commands.RunStats(args[0], filter, cmd.OutOrStdout())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&filterFlags.SessionID, "session", "", "Filter by session ID")
	pf.StringVar(&filterFlags.Remote, "remote", "", "Filter by client address")
	pf.StringVar(&filterFlags.Format, "wire-format", "", "Filter by session wire format")
	pf.StringVar(&filterFlags.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	pf.StringVar(&filterFlags.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	pf.StringVar(&filterFlags.Layer, "layer", "", "Filter by layer (transport, codec, service)")
	pf.StringVar(&filterFlags.Direction, "direction", "", "Filter by direction (in, out)")
	pf.StringVar(&filterFlags.Category, "category", "", "Filter by category (message, drop, state, error)")
	pf.StringVar(&filterFlags.PGN, "pgn", "", "Filter codec events by PGN")

	exportCmd.Flags().StringVar(&exportFormat, "format", "jsonl", "Output format (jsonl, csv, lines)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")

	filterCmd.Flags().StringVarP(&filterOutput, "output", "o", "", "Output file (required)")
	_ = filterCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(viewCmd, exportCmd, filterCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
