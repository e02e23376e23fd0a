package main

import (
	"os"

	"github.com/docpipe/docpipe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
