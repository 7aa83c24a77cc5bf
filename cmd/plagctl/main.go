// Command plagctl is the command-line client for offline comparisons,
// checks and store maintenance.
package main

import (
	"fmt"
	"os"

	"github.com/ABNmmd/PFE-FSA/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
