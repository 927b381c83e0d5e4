// Command tracesync inspects and replays recorded test runs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tracesync/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		// JSON output already carries the error envelope.
		if !cli.ErrorReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
