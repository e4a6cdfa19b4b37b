package cmd

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etnz/pricedb"
	"github.com/etnz/pricedb/metrics"
	"github.com/google/subcommands"
	"github.com/robfig/cron/v3"
)

type watchCmd struct {
	schedule string
	now      bool
	workers  int
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "synchronize the price database on a schedule" }
func (*watchCmd) Usage() string {
	return `lm watch [-schedule <cron spec>] [-now]

  Runs the synchronization on a schedule until interrupted. The schedule is a
  standard five fields cron expression or a descriptor such as "@daily" or
  "@every 6h", evaluated in UTC. A run still in progress when the next one is
  due makes the next one skipped.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.schedule, "schedule", "@daily", "When to synchronize, as a cron expression")
	f.BoolVar(&c.now, "now", false, "Also synchronize once at startup")
	f.IntVar(&c.workers, "workers", 0, "Number of years downloaded concurrently (default from the configuration)")
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if _, err := cron.ParseStandard(c.schedule); err != nil {
		return fail("invalid schedule %q: %v", c.schedule, err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return fail("%v", err)
	}
	base := baseLogger()
	logger := withRun(base)
	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return fail("cannot open price database %q: %v", cfg.PriceDB.Path, err)
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := newMetrics()
	job := syncJob(ctx, base, m, func(l *slog.Logger) *pricedb.Synchronizer {
		return newSynchronizer(cfg, store, c.workers, m, l)
	})

	scheduler, err := newScheduler(c.schedule, logger, job)
	if err != nil {
		return fail("invalid schedule %q: %v", c.schedule, err)
	}
	if c.now {
		job()
	}
	scheduler.Start()
	logger.Info("watching", "schedule", c.schedule, "next", scheduler.Entries()[0].Next)

	<-ctx.Done()
	logger.Info("stopping, waiting for the current run")
	<-scheduler.Stop().Done()
	return subcommands.ExitSuccess
}

// syncJob returns a scheduled synchronization. Each run logs with its own run
// identifier.
func syncJob(ctx context.Context, base *slog.Logger, m *metrics.Metrics, newSync func(*slog.Logger) *pricedb.Synchronizer) func() {
	return func() {
		logger := withRun(base)
		// errors are logged by the synchronizer, the next run retries.
		_, _ = newSync(logger).Sync(ctx)
		writeMetrics(m, logger)
	}
}

// newScheduler returns a UTC scheduler running job on spec, skipping a run
// while the previous one is still in progress.
func newScheduler(spec string, logger *slog.Logger, job func()) (*cron.Cron, error) {
	l := cronLogger{logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	if _, err := c.AddFunc(spec, job); err != nil {
		return nil, err
	}
	return c, nil
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

var _ cron.Logger = cronLogger{}

