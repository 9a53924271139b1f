package main

import (
	"os"

	"github.com/0xPolygon/ctc"
	"github.com/0xPolygon/ctc/common"
	"github.com/0xPolygon/ctc/config"
	"github.com/0xPolygon/ctc/log"
	"github.com/urfave/cli/v2"
)

const appName = "ctc"

const (
	flagCaller   = "caller"
	flagBatch    = "batch"
	flagSender   = "sender"
	flagTarget   = "target"
	flagGasLimit = "gas-limit"
	flagData     = "data"
)

var (
	configFileFlag = cli.StringSliceFlag{
		Name:     config.FlagCfg,
		Aliases:  []string{"c"},
		Usage:    "Configuration file(s)",
		Required: true,
	}
	componentsFlag = cli.StringSliceFlag{
		Name:     config.FlagComponents,
		Aliases:  []string{"co"},
		Usage:    "List of components to run",
		Required: false,
		Value:    cli.NewStringSlice(common.CHAIN, common.RPC),
	}
	saveConfigFlag = cli.StringFlag{
		Name:     config.FlagSaveConfigPath,
		Aliases:  []string{"s"},
		Usage:    "Save final configuration into to the indicated path (name: ctc_config.toml)",
		Required: false,
	}
	renderConfigFlag = cli.StringSliceFlag{
		Name:     config.FlagCfg,
		Aliases:  []string{"c"},
		Usage:    "Configuration file(s) to render instead of printing the defaults",
		Required: false,
	}
	minConfigFlag = cli.BoolFlag{
		Name:     config.FlagMinConfig,
		Usage:    "Print only the mandatory configuration variables",
		Required: false,
	}
	callerFlag = cli.StringFlag{
		Name:     flagCaller,
		Usage:    "Address submitting the batch, must be the registered sequencer",
		Required: true,
	}
	batchFlag = cli.StringFlag{
		Name:     flagBatch,
		Aliases:  []string{"b"},
		Usage:    "File with the 0x prefixed hex encoded sequencer batch",
		Required: true,
	}
	senderFlag = cli.StringFlag{
		Name:     flagSender,
		Usage:    "Address enqueueing the transaction",
		Required: true,
	}
	targetFlag = cli.StringFlag{
		Name:     flagTarget,
		Usage:    "Target address of the transaction",
		Required: true,
	}
	gasLimitFlag = cli.Uint64Flag{
		Name:     flagGasLimit,
		Usage:    "Gas limit of the transaction, the gas burned is derived from it",
		Required: true,
	}
	dataFlag = cli.StringFlag{
		Name:     flagData,
		Usage:    "0x prefixed hex encoded transaction data",
		Required: false,
	}
)

func main() {
	app := cli.NewApp()
	app.Name = appName
	app.Version = ctc.Version
	flags := []cli.Flag{
		&configFileFlag,
		&saveConfigFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name:    "version",
			Aliases: []string{},
			Usage:   "Application version and build",
			Action:  versionCmd,
		},
		{
			Name:    "run",
			Aliases: []string{},
			Usage:   "Run the ctc node",
			Action:  start,
			Flags:   append(flags, &componentsFlag),
		},
		{
			Name:    "config",
			Aliases: []string{},
			Usage:   "Print the default or the rendered configuration",
			Action:  configCmd,
			Flags:   []cli.Flag{&renderConfigFlag, &minConfigFlag, &saveConfigFlag},
		},
		{
			Name:    "enqueue",
			Aliases: []string{},
			Usage:   "Append a transaction to the queue",
			Action:  enqueueCmd,
			Flags:   append(flags, &senderFlag, &targetFlag, &gasLimitFlag, &dataFlag),
		},
		{
			Name:    "append-batch",
			Aliases: []string{},
			Usage:   "Append an encoded sequencer batch to the chain",
			Action:  appendBatchCmd,
			Flags:   append(flags, &callerFlag, &batchFlag),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
		os.Exit(1)
	}
}
