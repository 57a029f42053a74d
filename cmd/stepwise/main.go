// Command stepwise runs declarative end-to-end test scenarios against a live
// system.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/stepwise/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		// A failed run has already printed its report; only the summary line
		// goes to stderr.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Code != cli.ExitFailure {
			fmt.Fprintln(os.Stderr, "Error:", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
