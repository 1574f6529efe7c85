// Package main is the entry point for the sourcemap command line.
package main

import (
	"os"

	"github.com/anvil-platform/sourcemap/cmd/sourcemap/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
