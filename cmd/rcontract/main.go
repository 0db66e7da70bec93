// Command rcontract normalizes resource type schemas and runs contract
// tests against resource handlers.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/rcontract/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		os.Exit(cli.ExitSuccess)
	}

	// Commands report their own failures as ExitErrors. Anything else
	// comes from argument or flag parsing.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCommandError)
	}
	os.Exit(cli.GetExitCode(err))
}
