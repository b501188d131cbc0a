package main

import (
	"os"

	"github.com/harrowdale/sweeper/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
