// Command causaloid compiles, evaluates, and audits causal models.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/causaloid/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}

	// Commands report their own failures; anything else is a usage error
	// from flag or argument parsing.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCommandError)
	}
	os.Exit(exitErr.Code)
}
