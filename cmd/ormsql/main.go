// Command ormsql compiles entity-level query documents to SQL.
package main

import (
	"os"

	"github.com/roach88/ormsql/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
