package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type syncCmd struct {
	workers int
}

func (*syncCmd) Name() string { return "sync" }
func (*syncCmd) Synopsis() string {
	return "download the missing exchange rates into the price database"
}
func (*syncCmd) Usage() string {
	return `lm sync [-workers <n>]

  Computes the days missing from the price database, between the configured
  start_date and today, and downloads them from the exchange rates provider
  one year at a time. Each year is appended as soon as it is downloaded, so an
  interrupted run resumes where it stopped.
`
}

func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.workers, "workers", 0, "Number of years downloaded concurrently (default from the configuration)")
}

func (c *syncCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		return fail("%v", err)
	}
	logger := newLogger()
	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return fail("cannot open price database %q: %v", cfg.PriceDB.Path, err)
	}
	defer closeStore()

	m := newMetrics()
	defer writeMetrics(m, logger)

	rep, err := newSynchronizer(cfg, store, c.workers, m, logger).Sync(ctx)
	for _, r := range rep.Chunks {
		fmt.Fprintf(stdout, "fetched %v\n", r)
	}
	if err != nil {
		return fail("synchronization failed: %v", err)
	}
	fmt.Fprintf(stdout, "%d rates appended to %s\n", rep.Appended, cfg.PriceDB.Path)
	return subcommands.ExitSuccess
}
