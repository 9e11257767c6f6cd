package main

import (
	"os"

	"github.com/paneflow-dev/paneflow/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
