package main

import (
	"os"

	"snippethost/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
