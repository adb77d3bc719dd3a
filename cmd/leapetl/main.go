// Package main provides the CLI for LeapETL run-month extraction.
package main

import (
	"os"

	"github.com/leapstack-labs/leapetl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
