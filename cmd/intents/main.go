// Command intents runs the intent settlement solver and its tooling.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/intents/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
