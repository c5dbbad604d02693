// Package main is the entry point for metactl.
package main

import (
	"os"

	"metaschema/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
