// Command fathom is the entry point for the fathom hybrid retrieval engine.
// It provides a CLI for ingesting documents and searching them, and an
// optional HTTP server exposing the same search pipeline over REST.
package main

import (
	"fmt"
	"os"

	"github.com/fathom-ai/fathom-go/cmd/fathom/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
