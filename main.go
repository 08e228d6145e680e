package main

import (
	"fmt"
	"os"

	"github.com/TFMV/explorer/cmd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "explorer: panic: %v\n", r)
			os.Exit(cmd.ExitPanic)
		}
	}()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "explorer: %v\n", err)
		os.Exit(cmd.ExitCode(err))
	}
}
