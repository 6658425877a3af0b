// Command ragline is the entry point for the ragline retrieval-augmented
// generation toolkit. It provides a CLI for ingesting documents and asking
// questions, plus an HTTP server exposing the same pipelines over REST.
package main

import (
	"fmt"
	"os"

	"github.com/kvasir-ai/ragline/cmd/ragline/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
