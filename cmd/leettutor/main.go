// Package main provides the entry point for the LeetTutor server.
package main

import (
	"fmt"
	"os"

	"github.com/codecoach/leettutor/cmd/leettutor/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
