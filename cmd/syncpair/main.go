package main

import (
	"fmt"
	"os"

	"syncpair/cmd/syncpair/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
