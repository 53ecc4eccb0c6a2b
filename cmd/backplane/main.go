package main

import (
	"fmt"
	"os"

	"github.com/backplane-io/backplane/internal/cli"
	"github.com/backplane-io/backplane/internal/logging"
)

func main() {
	logging.InstallFailureHandler(func(err error) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	})
	defer logging.RecoverAndReport()

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
