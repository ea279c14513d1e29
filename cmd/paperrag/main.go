// Package main provides the entry point for the paperrag CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/paperrag/cmd/paperrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
