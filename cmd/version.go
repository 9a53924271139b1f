package main

import (
	"os"

	"github.com/0xPolygon/ctc"
	"github.com/urfave/cli/v2"
)

func versionCmd(*cli.Context) error {
	ctc.PrintVersion(os.Stdout)
	return nil
}
