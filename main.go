package main

import (
	"github.com/marcvidal/linkshortener/cmd"

	// Blank imports so each subcommand registers itself on the root command
	// via its init() function.
	_ "github.com/marcvidal/linkshortener/cmd/cli"
	_ "github.com/marcvidal/linkshortener/cmd/server"
)

func main() {
	cmd.Execute()
}
