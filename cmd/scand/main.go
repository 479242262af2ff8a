// This file is derived from cmd/kcn/main.go and cmd/ranger/config.go
// (urfave/cli app wiring, TOML config loading), generalized from a
// consensus node entrypoint to this module's scanner daemon.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/klaytn/bridgescan/audit"
	"github.com/klaytn/bridgescan/cache"
	"github.com/klaytn/bridgescan/config"
	"github.com/klaytn/bridgescan/db"
	"github.com/klaytn/bridgescan/feed"
	"github.com/klaytn/bridgescan/feed/memory"
	"github.com/klaytn/bridgescan/log"
	"github.com/klaytn/bridgescan/metrics"
	"github.com/klaytn/bridgescan/primitives"
	"github.com/klaytn/bridgescan/scanner"
	"github.com/klaytn/bridgescan/scheduler/simple"
	"github.com/klaytn/bridgescan/transport/kafka"
)

var logger = log.NewModuleLogger(log.ModuleCmd)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	dbDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "database directory (overrides config)",
	}
	dbBackendFlag = cli.StringFlag{
		Name:  "backend",
		Usage: "database backend: badger or leveldb (overrides config)",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics.addr",
		Usage: "Prometheus /metrics listen address (overrides config)",
	}
)

var app = cli.NewApp()

func init() {
	app.Name = "scand"
	app.Usage = "multi-key bridge scanner daemon"
	app.Flags = []cli.Flag{
		configFileFlag,
		dbDirFlag,
		dbBackendFlag,
		metricsAddrFlag,
	}
	app.Action = run
}

func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := config.Load(file, &cfg); err != nil {
			return cfg, err
		}
	}
	if dir := ctx.String(dbDirFlag.Name); dir != "" {
		cfg.Database.Dir = dir
	}
	if backend := ctx.String(dbBackendFlag.Name); backend != "" {
		cfg.Database.Backend = backend
	}
	if addr := ctx.String(metricsAddrFlag.Name); addr != "" {
		cfg.Metrics.Addr = addr
	}
	return cfg, nil
}

func openDatabase(cfg config.DatabaseConfig) (db.Database, error) {
	switch cfg.Backend {
	case "leveldb":
		return db.OpenLevelDB(cfg.Dir, 16, 16)
	case "badger", "":
		return db.OpenBadger(cfg.Dir)
	default:
		return nil, fmt.Errorf("scand: unknown database backend %q", cfg.Backend)
	}
}

// run wires every ambient package into one Scanner and blocks until the
// process receives SIGINT/SIGTERM. It drives scanner/feed/memory rather
// than a real chain client: a concrete chain integration supplies its own
// feed.ScannerFeed and swaps it in here.
func run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("scand: opening database: %w", err)
	}
	defer database.Close()

	f := memory.New(cfg.Scanner.Network)
	f.ConfirmationsV = cfg.Scanner.Confirmations
	f.WindowLengthV = cfg.Scanner.WindowLength
	f.TenMinutesV = cfg.Scanner.TenMinutes
	for coin, amount := range cfg.Scanner.Dust {
		f.DustV[primitives.Coin(coin)] = amount
	}

	var publisher feed.BatchPublisher
	if cfg.Kafka.Enabled {
		kc := kafka.DefaultConfig(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		kp, err := kafka.New(kc)
		if err != nil {
			return fmt.Errorf("scand: connecting to kafka: %w", err)
		}
		defer kp.Close()
		publisher = kp
	} else {
		logger.Info("kafka disabled, publishing to the in-memory recorder")
		publisher = memory.NewPublisher()
	}

	sched := simple.New[memory.Key, memory.Address, memory.Output]()

	s := scanner.New[memory.Key, memory.Address, memory.Output, simple.Eventuality, memory.Block](
		database, f, publisher, sched, cfg.Scanner.StartBlock,
		memory.DecodeKey, memory.ReadOutput, simple.ReadEventuality,
	)

	if cfg.Metrics.Enabled {
		rec := metrics.New()
		s.WithMetrics(rec)
		go func() {
			logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
			http.Handle("/metrics", rec.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, nil); err != nil {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
		if cfg.Metrics.RedisAddr != "" {
			s.WithStatusMirror(cache.NewStatusMirror(cfg.Metrics.RedisAddr, cfg.Metrics.RedisDB, cfg.Scanner.Network))
		}
	}

	if dsn := auditDSN(); dsn != "" {
		ledger, err := audit.Open(dsn)
		if err != nil {
			logger.Warn("audit ledger unavailable, continuing without it", "err", err)
		} else {
			defer ledger.Close()
			s.WithAuditLedger(ledger)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting scanner", "network", cfg.Scanner.Network, "backend", cfg.Database.Backend)
	s.Run(runCtx)
	return nil
}

// auditDSN reads the MySQL DSN from the environment rather than the TOML
// config: it's an operator secret, not a scanning parameter.
func auditDSN() string {
	return os.Getenv("SCAND_AUDIT_DSN")
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
