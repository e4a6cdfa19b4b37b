package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/etnz/pricedb/date"
	"github.com/etnz/pricedb/ledger"
	"github.com/google/subcommands"
)

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// runLedger runs fn with a ledger client on the configured files and prints
// its output.
func runLedger(ctx context.Context, fn func(ctx context.Context, c *ledger.Client) (string, error)) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		return fail("%v", err)
	}
	c, cleanup, err := ledgerClient(cfg, newLogger())
	if err != nil {
		return fail("%v", err)
	}
	defer cleanup()

	out, err := fn(ctx, c)
	if err != nil {
		return fail("%v", err)
	}
	fmt.Fprint(stdout, out)
	return subcommands.ExitSuccess
}

type ledgerCmd struct {
	patterns stringList
}

func (*ledgerCmd) Name() string     { return "ledger" }
func (*ledgerCmd) Synopsis() string { return "run any ledger command on the configured journal" }
func (*ledgerCmd) Usage() string {
	return `lm ledger [-f <account pattern>]... [--] <ledger arguments>

  Runs ledger with the configured transactions file and price database. With
  -f, the command is restricted to the accounts matching any of the patterns:
  an account matches if the pattern, as a regular expression, matches the
  beginning of its name, or if its name contains the pattern.

  Example:

    lm ledger -f Expenses:Food -- register --monthly
`
}

func (c *ledgerCmd) SetFlags(f *flag.FlagSet) {
	f.Var(&c.patterns, "f", "Account pattern, can be repeated")
}

func (c *ledgerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		return fail("missing ledger arguments")
	}
	return runLedger(ctx, func(ctx context.Context, l *ledger.Client) (string, error) {
		return l.Forward(ctx, f.Args(), c.patterns...)
	})
}

// reportFlags are the period and conversion flags of the report commands.
type reportFlags struct {
	begin, end, last string
	exchange         string
}

// setFlags registers the flags, last is the default of -last.
func (r *reportFlags) setFlags(f *flag.FlagSet, last string) {
	f.StringVar(&r.begin, "begin", "", "First day of the report (default the start of the -last period)")
	f.StringVar(&r.end, "end", "", "Day after the last day of the report (default tomorrow)")
	f.StringVar(&r.last, "last", last, "Report on the period (day, week, month, quarter, year) ending at -end")
	f.StringVar(&r.exchange, "X", "", "Convert amounts to this commodity")
	f.StringVar(&r.exchange, "exchange", "", "Same as -X")
}

func (r *reportFlags) report() (ledger.Report, error) {
	var rep ledger.Report
	var err error
	if r.begin != "" {
		if rep.Begin, err = date.Parse(r.begin); err != nil {
			return rep, err
		}
	}
	if r.end != "" {
		if rep.End, err = date.Parse(r.end); err != nil {
			return rep, err
		}
	}
	if r.last != "" {
		p, err := date.ParsePeriod(r.last)
		if err != nil {
			return rep, err
		}
		rep.Last = &p
	}
	rep.Exchange = r.exchange
	return rep, nil
}

type balanceCmd struct {
	reportFlags
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "show the balance of accounts" }
func (*balanceCmd) Usage() string {
	return `lm balance [-begin <day>] [-end <day>] [-last <period>] [-X <commodity>] [<account pattern>...]

  Runs "ledger balance" on the accounts matching any of the patterns, or on
  every account.
`
}

func (c *balanceCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f, "") }

func (c *balanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rep, err := c.report()
	if err != nil {
		return fail("%v", err)
	}
	rep.Accounts = f.Args()
	return runLedger(ctx, func(ctx context.Context, l *ledger.Client) (string, error) {
		return l.Balance(ctx, rep)
	})
}

type averageCmd struct {
	reportFlags
	agg string
}

func (*averageCmd) Name() string     { return "average" }
func (*averageCmd) Synopsis() string { return "show the average of accounts per period" }
func (*averageCmd) Usage() string {
	return `lm average [-begin <day>] [-end <day>] [-last <period>] [-agg <period>] [-X <commodity>] [<account pattern>...]

  Runs an averaged and collapsed "ledger register". Postings are aggregated by
  -agg, which defaults to the period just finer than -last (weekly for a
  monthly report), or daily.
`
}

func (c *averageCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f, "")
	f.StringVar(&c.agg, "agg", "", "Aggregation period (day, week, month, quarter, year)")
}

func (c *averageCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rep, err := c.report()
	if err != nil {
		return fail("%v", err)
	}
	rep.Accounts = f.Args()
	var agg *date.Period
	if c.agg != "" {
		p, err := date.ParsePeriod(c.agg)
		if err != nil {
			return fail("%v", err)
		}
		agg = &p
	}
	return runLedger(ctx, func(ctx context.Context, l *ledger.Client) (string, error) {
		return l.Average(ctx, rep, agg)
	})
}

// preset is a balance report on predefined accounts.
type preset struct {
	name, synopsis string
	accounts       []string
	exclude        []string
	args           []string
	period         string // default -last
}

var (
	assetsPreset = preset{
		name:     "assets",
		synopsis: "show the balance of assets, budget envelopes excluded",
		accounts: []string{"^Assets"},
		exclude:  []string{"^Assets:Budget"},
	}
	expensesPreset = preset{
		name:     "expenses",
		synopsis: "show the expenses of the last month",
		accounts: []string{"^Expenses"},
		period:   "month",
	}
	budgetPreset = preset{
		name:     "budget",
		synopsis: "show the budget envelopes of the last month",
		accounts: []string{"^Assets:Budget:Unbudgeted$", "^Assets:Budget:Expenses.*$"},
		args:     []string{"--depth", "4"},
		period:   "month",
	}
)

type presetCommand struct {
	preset
	reportFlags
}

func presetCmd(p preset) *presetCommand { return &presetCommand{preset: p} }

func (c *presetCommand) Name() string     { return c.name }
func (c *presetCommand) Synopsis() string { return c.synopsis }
func (c *presetCommand) Usage() string {
	return fmt.Sprintf(`lm %s [-begin <day>] [-end <day>] [-last <period>] [-X <commodity>]

  Runs "ledger balance" on the accounts matching %q.
`, c.name, c.accounts)
}

func (c *presetCommand) SetFlags(f *flag.FlagSet) { c.setFlags(f, c.period) }

func (c *presetCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rep, err := c.report()
	if err != nil {
		return fail("%v", err)
	}
	rep.Accounts = c.accounts
	rep.Exclude = c.exclude
	rep.Args = c.args
	return runLedger(ctx, func(ctx context.Context, l *ledger.Client) (string, error) {
		return l.Balance(ctx, rep)
	})
}
