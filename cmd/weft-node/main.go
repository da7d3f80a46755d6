package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"weft.dev/node/consensus"
	"weft.dev/node/crypto"
	"weft.dev/node/node"
	"weft.dev/node/node/bootstrap"
	"weft.dev/node/node/sigcheck"
	"weft.dev/node/node/store"
)

func main() {
	app := &cli.App{
		Name:  "weft-node",
		Usage: "run the weft ledger core",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "datadir", Usage: "data directory", Value: node.DefaultDataDir()},
			&cli.StringFlag{Name: "network", Usage: "network to join (dev)", Value: "dev"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Value: "info"},
			&cli.IntFlag{Name: "sig-threads", Usage: "signature checker threads", Value: node.DefaultConfig().SignatureCheckerThreads},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loggingRequester stands in for the transport layer: the core only emits
// which account or hash to pull next.
type loggingRequester struct {
	log logrus.FieldLogger
}

func (r *loggingRequester) RequestAccount(account consensus.Account) {
	r.log.WithField("account", account).Debug("bootstrap pull")
}

func (r *loggingRequester) RequestBlock(hash consensus.Hash) {
	r.log.WithField("hash", hash).Debug("bootstrap fetch")
}

func run(c *cli.Context) error {
	cfg := node.DefaultConfig()
	cfg.Network = c.String("network")
	cfg.DataDir = c.String("datadir")
	cfg.LogLevel = c.String("log-level")
	cfg.SignatureCheckerThreads = c.Int("sig-threads")
	if err := node.ValidateConfig(cfg); err != nil {
		return err
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	network, err := node.NetworkFromName(cfg.Network)
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer s.Close()

	provider := crypto.Ed25519Provider{}
	ledger, err := node.NewLedger(s, network, provider, log)
	if err != nil {
		return err
	}

	observers := &node.Observers{}
	metrics := node.NewMetrics(nil)
	checker := sigcheck.NewChecker(provider, cfg.SignatureCheckerThreads)

	processor := node.NewBlockProcessor(cfg, ledger, observers, metrics, log)
	votes := node.NewVoteProcessor(checker, ledger, observers, metrics, log, cfg.UniquerSize)

	sets := bootstrap.NewAccountSets(bootstrap.Config{
		PrioritiesMax: cfg.PrioritiesMax,
		BlockingMax:   cfg.BlockingMax,
		CooldownMS:    cfg.CooldownMS,
		Growth:        bootstrapGrowth(cfg.PriorityGrowth),
	})
	ascending := bootstrap.NewService(sets, &loggingRequester{log: log}, bootstrap.Config{CooldownMS: cfg.CooldownMS}, log)
	observers.OnBlockProcessed(func(status consensus.ProcessResult, ctx node.ProcessedContext) {
		ascending.Inspect(status, ctx.Block, ledger.DependencyKey(status, ctx.Block))
	})

	processor.Start()
	votes.Start()
	ascending.Start()
	log.WithFields(logrus.Fields{
		"network": network.Name,
		"datadir": cfg.DataDir,
		"blocks":  ledger.BlockCount(),
	}).Info("node started")

	stopMaintenance := make(chan struct{})
	go maintenanceLoop(s, cfg, log, stopMaintenance)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Info("shutting down")
	close(stopMaintenance)
	ascending.Stop()
	votes.Stop()
	processor.Stop()
	checker.Stop()
	return nil
}

func bootstrapGrowth(g node.PriorityGrowth) bootstrap.Growth {
	if g == node.PriorityGrowthMultiplicative {
		return bootstrap.GrowthMultiplicative
	}
	return bootstrap.GrowthAdditive
}

// maintenanceLoop ages out stale unchecked blocks and online-weight
// samples on a slow cadence.
func maintenanceLoop(s *store.Store, cfg node.Config, log logrus.FieldLogger, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		txn, err := s.BeginWrite()
		if err != nil {
			log.WithError(err).Error("maintenance: begin write")
			continue
		}
		cutoff := uint64(time.Now().Add(-time.Duration(cfg.UncheckedCutoffTimeS) * time.Second).UnixMilli())
		dropped, err := txn.UncheckedTrim(cutoff)
		if err == nil {
			err = txn.OnlineWeightTrim(4096)
		}
		if err != nil {
			txn.Discard()
			log.WithError(err).Error("maintenance failed")
			continue
		}
		if err := txn.Commit(); err != nil {
			log.WithError(err).Error("maintenance commit failed")
			continue
		}
		if dropped > 0 {
			log.WithField("dropped", dropped).Debug("trimmed unchecked")
		}
	}
}
