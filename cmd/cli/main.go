// Package main is the entry point for the sqlbridge CLI binary.
package main

import (
	"os"

	_ "github.com/mattn/go-sqlite3"

	cli "sqlbridge/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
