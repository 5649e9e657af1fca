package main

import (
	"fmt"
	"os"

	"github.com/roach88/flagsearch/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "flagsearch:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
