// Package main is the maestro command line.
package main

import (
	"os"

	"github.com/chr1syy/maestro/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version, os.Args[1:], os.Stdout, os.Stderr))
}
