// Package main is the entry point for the prgate CLI.
package main

import (
	"os"

	"github.com/JNZader/prgate/cmd/prgate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
