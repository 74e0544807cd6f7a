/*
Package main is the entry point for the handsoff CLI.

handsoff watches the webcam and alerts you when you touch your face. It is
trained in a few seconds from your own frames and classifies each new frame
by nearest-neighbour vote.

Usage:

	handsoff [command]

Available Commands:

	run      Run with tray controls and the local server
	serve    Run headless, controlled over the local HTTP API
	history  Show fired alerts and training bursts
	config   Inspect the configuration
*/
package main

import (
	"fmt"
	"os"

	"github.com/ayusman/handsoff/internal/cli"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := cli.NewRootCmd(fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
