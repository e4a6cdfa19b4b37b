package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/etnz/pricedb"
	"github.com/etnz/pricedb/config"
	"github.com/etnz/pricedb/date"
	"github.com/google/subcommands"
)

type statusCmd struct {
	plain bool
}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show the coverage of the price database" }
func (*statusCmd) Usage() string {
	return `lm status [-plain]

  Shows the number of records of the price database, the first and last days
  it covers, and the chunks the next synchronization would download.
`
}

func (c *statusCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.plain, "plain", false, "Print raw markdown instead of rendering it")
}

func (c *statusCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	rates, err := store.ReadAll()
	if err != nil {
		return fail("%v", err)
	}
	first, last := pricedb.Span(rates)
	pending := date.Plan(cfg.PriceDB.StartDate, first, last, date.Today())

	md := statusMarkdown(cfg, len(rates), first, last, pending)
	if c.plain {
		fmt.Fprint(stdout, md)
	} else {
		printMarkdown(md)
	}
	return subcommands.ExitSuccess
}

func statusMarkdown(cfg *config.Config, records int, first, last date.Date, pending []date.Range) string {
	day := func(d date.Date) string {
		if d.IsZero() {
			return "-"
		}
		return d.String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Price database\n\n")
	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Path | `%s` |\n", cfg.PriceDB.Path)
	fmt.Fprintf(&b, "| Driver | %s |\n", cfg.PriceDB.Driver)
	fmt.Fprintf(&b, "| Pair | %s / %s |\n", cfg.ExchangeRates.MainCurrency, strings.Join(cfg.ExchangeRates.Currencies, ", "))
	fmt.Fprintf(&b, "| Start date | %s |\n", cfg.PriceDB.StartDate)
	fmt.Fprintf(&b, "| Records | %d |\n", records)
	fmt.Fprintf(&b, "| First day | %s |\n", day(first))
	fmt.Fprintf(&b, "| Last day | %s |\n", day(last))

	if len(pending) == 0 {
		fmt.Fprintf(&b, "\nThe price database is up to date.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "\n## Pending\n\n")
	for _, r := range pending {
		fmt.Fprintf(&b, "- %v (%d days)\n", r, r.Days())
	}
	return b.String()
}
