package main

import (
	"os"

	"github.com/spigell/ml-job-radar/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
