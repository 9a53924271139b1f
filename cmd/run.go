package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	jRPC "github.com/0xPolygon/cdk-rpc/rpc"
	"github.com/0xPolygon/ctc"
	"github.com/0xPolygon/ctc/chain"
	chaintypes "github.com/0xPolygon/ctc/chain/types"
	"github.com/0xPolygon/ctc/clock"
	ctccommon "github.com/0xPolygon/ctc/common"
	"github.com/0xPolygon/ctc/config"
	"github.com/0xPolygon/ctc/log"
	"github.com/0xPolygon/ctc/queue"
	"github.com/0xPolygon/ctc/registry"
	"github.com/0xPolygon/ctc/rpc"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// node holds the components shared by every command
type node struct {
	queue  *queue.Queue
	merger *chain.Merger
}

func start(cliCtx *cli.Context) error {
	c, err := config.Load(cliCtx)
	if err != nil {
		return err
	}

	log.Init(c.Log)

	if c.Log.Environment == log.EnvironmentDevelopment {
		ctc.PrintVersion(os.Stdout)
		log.Info("Starting application")
	} else if c.Log.Environment == log.EnvironmentProduction {
		logVersion()
	}

	ctx, cancel := context.WithCancel(cliCtx.Context)
	n, err := newNode(ctx, c)
	if err != nil {
		cancel()
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, component := range cliCtx.StringSlice(config.FlagComponents) {
		switch component {
		case ctccommon.CHAIN:
			g.Go(func() error {
				watchChain(gCtx, n)
				return nil
			})
		case ctccommon.RPC:
			server := createRPC(c.RPC, n)
			g.Go(func() error {
				if err := server.Start(); err != nil {
					return fmt.Errorf("rpc server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gCtx.Done()
				return server.Stop()
			})
		default:
			log.Warnf("unknown component %q", component)
		}
	}

	go func() {
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal(err)
		}
	}()

	waitSignal([]context.CancelFunc{cancel})
	return nil
}

func newNode(ctx context.Context, c *config.Config) (*node, error) {
	reg, err := registry.NewStatic(c.Registry)
	if err != nil {
		return nil, fmt.Errorf("error creating registry: %w", err)
	}
	clk, err := clock.New(ctx, c.Clock)
	if err != nil {
		return nil, fmt.Errorf("error creating clock: %w", err)
	}
	q, err := queue.New(log.WithFields("module", "queue"), c.Queue, reg, clk)
	if err != nil {
		return nil, fmt.Errorf("error creating queue: %w", err)
	}
	merger, err := chain.New(log.WithFields("module", ctccommon.CHAIN), c.Chain, q, reg, clk)
	if err != nil {
		return nil, fmt.Errorf("error creating chain merger: %w", err)
	}
	return &node{queue: q, merger: merger}, nil
}

// watchChain logs the chain events until ctx is done
func watchChain(ctx context.Context, n *node) {
	logger := log.WithFields("module", "watcher")
	enqueued := make(chan queue.TransactionEnqueued, 16)
	appended := make(chan chaintypes.SequencerBatchAppended, 16)
	enqueuedSub := n.queue.SubscribeTransactionEnqueued(enqueued)
	defer enqueuedSub.Unsubscribe()
	appendedSub := n.merger.SubscribeSequencerBatchAppended(appended)
	defer appendedSub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-enqueued:
			logger.Infow("transaction enqueued",
				"queueIndex", ev.QueueIndex, "sender", ev.Sender, "target", ev.Target, "gasLimit", ev.GasLimit)
		case ev := <-appended:
			logger.Infow("sequencer batch appended",
				"batchIndex", ev.BatchIndex, "batchRoot", ev.BatchRoot, "batchSize", ev.BatchSize,
				"startingQueueIndex", ev.StartingQueueIndex, "numQueueElements", ev.NumQueueElements,
				"totalElements", ev.TotalElements)
		}
	}
}

func createRPC(cfg jRPC.Config, n *node) *jRPC.Server {
	logger := log.WithFields("module", ctccommon.RPC)
	services := []jRPC.Service{
		{
			Name:    rpc.CTC,
			Service: rpc.NewCTCEndpoints(logger, cfg.ReadTimeout.Duration, n.merger, n.queue),
		},
	}

	return jRPC.NewServer(cfg, services, jRPC.WithLogger(logger.GetSugaredLogger()))
}

func logVersion() {
	log.Infow("Starting application", ctc.GetVersion().Fields()...)
}

func waitSignal(cancelFuncs []context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)

	for sig := range signals {
		switch sig {
		case os.Interrupt, os.Kill:
			log.Info("terminating application gracefully...")

			exitStatus := 0
			for _, cancel := range cancelFuncs {
				cancel()
			}
			os.Exit(exitStatus)
		}
	}
}
