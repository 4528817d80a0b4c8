package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/loupe/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "loupe",
	Short: "Loupe - HTTP request/response recorder",
	Long: `Loupe records every HTTP request and response that passes through it.

Each request produces an arrival record with method, URL, headers, cookies
and body, followed by exactly one completion record with status, headers,
the emitted body and duration, or a failure record when the client goes
away, the write fails or the handler panics.

Records go to the console (human-readable blocks) or to the structured log.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
