// Command evq stores events durably and delivers them to listeners on a
// polling cadence.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/evq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "evq:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
