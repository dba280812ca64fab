// Package main provides the dicta CLI entry point.
// dicta records legal consultations with live transcription and runs the
// AI processing pipeline that turns recordings into attributed transcripts,
// summaries and tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/dicta-cli/cmd"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "dicta",
	Short: "Record and process legal consultations",
	Long: `dicta is the command-line interface for recording legal consultations.

A recording streams to a live transcription service while the audio is
archived locally. When a recording stops it is uploaded and queued; the
processing pipeline transcribes it, attributes speakers (lawyer, client,
other), extracts a summary with actionable tasks, and indexes the result
for search.

Typical flow:
  dicta auth set-key speech-api-key    # once
  dicta auth set-key openai-api-key    # once
  dicta db migrate                     # once per schema change
  dicta record --title "Consultation"  # record
  dicta worker                         # background processing
  dicta meeting list                   # browse results
  dicta search "retainer"              # find a meeting`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(cmd.NewRecordCommand(nil))
	rootCmd.AddCommand(cmd.NewProcessCommand(nil))
	rootCmd.AddCommand(cmd.NewMeetingCommand(nil))
	rootCmd.AddCommand(cmd.NewSearchCommand(nil))
	rootCmd.AddCommand(cmd.NewWorkerCommand(nil))
	rootCmd.AddCommand(cmd.NewDBCommand(nil))
	rootCmd.AddCommand(cmd.NewAuthCommand(nil))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
