// Command cardity compiles Cardity protocols and runs them against
// persistent state.
package main

import (
	"fmt"
	"os"

	"github.com/cardity-org/cardity-core/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
