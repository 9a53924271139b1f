package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/0xPolygon/ctc/config"
	"github.com/0xPolygon/ctc/log"
	"github.com/0xPolygon/ctc/queue"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
)

func loadNode(cliCtx *cli.Context) (*node, error) {
	c, err := config.Load(cliCtx)
	if err != nil {
		return nil, err
	}
	log.Init(c.Log)
	return newNode(cliCtx.Context, c)
}

func parseAddress(value, flag string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid --%s address %q", flag, value)
	}
	return common.HexToAddress(value), nil
}

func enqueueCmd(cliCtx *cli.Context) error {
	sender, err := parseAddress(cliCtx.String(flagSender), flagSender)
	if err != nil {
		return err
	}
	target, err := parseAddress(cliCtx.String(flagTarget), flagTarget)
	if err != nil {
		return err
	}
	var data []byte
	if raw := cliCtx.String(flagData); raw != "" {
		if data, err = hexutil.Decode(raw); err != nil {
			return fmt.Errorf("invalid --%s: %w", flagData, err)
		}
	}

	n, err := loadNode(cliCtx)
	if err != nil {
		return err
	}
	defer n.queue.Close()

	gasLimit := cliCtx.Uint64(flagGasLimit)
	element, err := n.queue.Enqueue(cliCtx.Context, queue.EnqueueRequest{
		Sender:    sender,
		Target:    target,
		GasLimit:  gasLimit,
		Data:      data,
		GasBudget: gasLimit,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stdout, "queue index %d, transaction hash %s\n", element.QueueIndex, element.TransactionHash)
	return err
}

func appendBatchCmd(cliCtx *cli.Context) error {
	caller, err := parseAddress(cliCtx.String(flagCaller), flagCaller)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(cliCtx.String(flagBatch))
	if err != nil {
		return err
	}
	encoded, err := hexutil.Decode(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("batch file is not hex encoded: %w", err)
	}

	n, err := loadNode(cliCtx)
	if err != nil {
		return err
	}
	defer n.queue.Close()

	header, err := n.merger.AppendSequencerBatch(cliCtx.Context, caller, encoded)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stdout, "%s, hash %s\n", header, header.Hash())
	return err
}
