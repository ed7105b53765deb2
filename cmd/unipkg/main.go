package main

import (
	"os"

	"unipkg/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
