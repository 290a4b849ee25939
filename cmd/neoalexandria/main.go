// Package main provides the entry point for the neoalexandria CLI.
package main

import (
	"os"

	"github.com/ram-tewari/neo-alexandria-sub002/cmd/neoalexandria/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
