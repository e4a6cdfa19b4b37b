// Package cmd implements the lm command line application, which maintains the
// price database of a ledger journal and runs ledger reports on it.
package cmd

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/etnz/pricedb"
	"github.com/etnz/pricedb/config"
	"github.com/etnz/pricedb/ledger"
	"github.com/etnz/pricedb/metrics"
	"github.com/etnz/pricedb/provider"
	"github.com/etnz/pricedb/sqlstore"
	"github.com/google/subcommands"
	"github.com/google/uuid"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&syncCmd{}, "price database")
	c.Register(subcommands.Alias("update-db", &syncCmd{}), "price database")
	c.Register(&statusCmd{}, "price database")
	c.Register(&watchCmd{}, "price database")
	c.Register(&exportCmd{}, "price database")

	c.Register(&ledgerCmd{}, "ledger")
	c.Register(subcommands.Alias("forward", &ledgerCmd{}), "ledger")
	c.Register(&balanceCmd{}, "ledger")
	c.Register(&averageCmd{}, "ledger")
	c.Register(presetCmd(assetsPreset), "ledger")
	c.Register(presetCmd(expensesPreset), "ledger")
	c.Register(presetCmd(budgetPreset), "ledger")

	c.Register(&showConfigCmd{}, "")
	c.Register(&topicCmd{}, "")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", "", "Path to the configuration file (default ./config.yaml merged over the user configuration)")
var metricsFile = flag.String("metrics-file", "", "Write synchronization metrics to this file in the Prometheus text format")

// Verbose enables debug logs.
var Verbose = flag.Bool("v", false, "Enable verbose logging")

// stderr receives logs, it is replaced in tests.
var stderr io.Writer = os.Stderr

// newLogger returns the application logger. Every record carries the run
// identifier, so that logs of concurrent runs can be told apart.
func newLogger() *slog.Logger { return withRun(baseLogger()) }

// baseLogger returns the application logger without run identifier.
func baseLogger() *slog.Logger {
	level := slog.LevelInfo
	if *Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

// withRun tags every record of l with a new run identifier.
func withRun(l *slog.Logger) *slog.Logger { return l.With("run", uuid.NewString()) }

// loadConfig loads the configuration from the -config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(*configFile)
}

// openStore opens the configured price database. The returned function
// releases it.
func openStore(cfg *config.Config, logger *slog.Logger) (pricedb.Store, func() error, error) {
	switch cfg.PriceDB.Driver {
	case config.DriverSQLite:
		s, err := sqlstore.Open(cfg.PriceDB.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return pricedb.NewFileStore(cfg.PriceDB.Path, logger), func() error { return nil }, nil
	}
}

// newProvider returns the rate provider client of the configuration.
func newProvider(cfg *config.Config, logger *slog.Logger) *provider.Client {
	e := cfg.ExchangeRates
	return &provider.Client{
		URL:       e.APIURL,
		Key:       e.APIKey,
		Base:      e.MainCurrency,
		Symbols:   e.Currencies,
		Aliases:   e.CurrencyAliases,
		RatesPath: e.RatesPath,
		HTTP:      provider.NewHTTPClient(e.Timeout, e.Cache, logger),
		Logger:    logger,
	}
}

// newSynchronizer wires the store and provider of the configuration. A
// positive workers overrides the configured value.
func newSynchronizer(cfg *config.Config, store pricedb.Store, workers int, m *metrics.Metrics, logger *slog.Logger) *pricedb.Synchronizer {
	if workers <= 0 {
		workers = cfg.PriceDB.Workers
	}
	s := &pricedb.Synchronizer{
		Store:    store,
		Provider: newProvider(cfg, logger),
		Start:    cfg.PriceDB.StartDate,
		Workers:  workers,
		Logger:   logger,
	}
	if m != nil {
		s.Observer = m
	}
	return s
}

// newMetrics returns the metrics collector, nil if -metrics-file is not set.
func newMetrics() *metrics.Metrics {
	if *metricsFile == "" {
		return nil
	}
	return metrics.New()
}

// writeMetrics writes m to the -metrics-file, if any.
func writeMetrics(m *metrics.Metrics, logger *slog.Logger) {
	if m == nil {
		return
	}
	if err := m.WriteTextfile(*metricsFile); err != nil {
		logger.Warn("cannot write metrics", "path", *metricsFile, "error", err)
	}
}

// ledgerClient returns a ledger client on the configured journal and price
// database.
//
// ledger only reads text price databases: a SQLite store is exported to a
// temporary file first. The returned function removes it.
func ledgerClient(cfg *config.Config, logger *slog.Logger) (*ledger.Client, func(), error) {
	c := &ledger.Client{
		Transactions: cfg.TransactionsPath,
		PriceDB:      cfg.PriceDB.Path,
		Logger:       logger,
	}
	if cfg.TransactionsPath == "" {
		return nil, nil, fmt.Errorf("transactions_path is not configured")
	}
	if cfg.PriceDB.Driver != config.DriverSQLite {
		return c, func() {}, nil
	}

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	defer closeStore()

	f, err := os.CreateTemp("", "lm-prices-*.db")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { os.Remove(f.Name()) }
	n, err := pricedb.Export(f, store)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("cannot export the price database for ledger: %w", err)
	}
	logger.Debug("exported price database for ledger", "path", f.Name(), "rates", n)
	c.PriceDB = f.Name()
	return c, cleanup, nil
}

// fail prints err and returns the failure status.
func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitFailure
}
