package main

// Main entry point of the application
// Executes Cobra commands and handles command execution errors

import (
	"fmt"
	"os"

	"holders-api/cmd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
