// Command streamql compiles SELECT statements into streaming pipelines and
// runs them over files and SQLite tables.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/streamql/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands report their own ExitErrors; anything else is a usage
		// error from flag or argument parsing.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(cli.ExitCommandError)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
