package main

import (
	"os"

	"github.com/notearc/nbq/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
