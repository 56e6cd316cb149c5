// Command docrag is the entry point for the document question-answering
// service. It provides a CLI (via Cobra) for ingesting and querying documents
// and an HTTP server exposing the same operations.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/54b3r/docrag-go/cmd/docrag/commands"
)

func main() {
	if err := commands.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
