package main

import (
	"os"

	"github.com/conneroisu/hrserve/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
