package main

import (
	"os"

	"github.com/wonny/solofill/cmd/solofill/commands"
)

// main is the entry point for the solofill CLI
// ⭐ single CLI entry point: go run ./cmd/solofill [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
