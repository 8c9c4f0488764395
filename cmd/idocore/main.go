// Command idocore runs and operates the IDO allocation engine.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/idocore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
