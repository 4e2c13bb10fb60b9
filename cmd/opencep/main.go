// Command opencep evaluates complex event patterns over event streams.
package main

import (
	"fmt"
	"os"

	"github.com/YossiLevi4497/OpenCEP/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
