// cmd/brandguard/main.go
//
// This is the entry point for the brandguard CLI. Running the bare binary
// launches the setup wizard TUI; `brandguard rules ...` drives the rule
// catalog headlessly.

package main

import (
	"fmt"
	"os"

	"brandguard/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "brandguard: %v\n", err)
		os.Exit(1)
	}
}
