package ledger

import (
	"context"

	"github.com/etnz/pricedb/date"
)

// Epoch is the default beginning of reports without period.
var Epoch = date.New(1980, 1, 1)

// Report holds the parameters shared by report commands.
type Report struct {
	Accounts []string // account patterns, see Cmd.Accounts
	Exclude  []string // account patterns to leave out
	Args     []string // extra ledger arguments

	Begin date.Date    // zero means the start of the Last period, or Epoch
	End   date.Date    // zero means tomorrow
	Last  *date.Period // the period ending at End to report on

	Exchange string // commodity to convert to (ledger -X), optional
}

// Range returns the [begin, end] dates passed to ledger for the report, given
// today's date.
func (r Report) Range(today date.Date) date.Range {
	end := r.End
	if end.IsZero() {
		end = today.Add(1)
	}
	begin := r.Begin
	if begin.IsZero() {
		begin = Epoch
		if r.Last != nil {
			begin = end.StartOf(*r.Last)
		}
	}
	return date.Range{From: begin, To: end}
}

func (c *Client) report(r Report, args ...string) *Cmd {
	span := r.Range(c.today())
	return c.Cmd().
		Args(args...).
		Args(r.Args...).
		Accounts(r.Accounts...).
		Exclude(r.Exclude...).
		Option("begin", span.From.String()).
		Option("end", span.To.String()).
		Option("exchange", r.Exchange)
}

// Balance runs "ledger balance" for the report accounts and period.
func (c *Client) Balance(ctx context.Context, r Report) (string, error) {
	return c.report(r, "balance").Run(ctx)
}

// Average runs an averaged, collapsed "ledger register" for the report
// accounts and period.
//
// A nil aggregation means one period finer than r.Last (a monthly report is
// aggregated weekly), or daily if r.Last is nil.
func (c *Client) Average(ctx context.Context, r Report, aggregation *date.Period) (string, error) {
	agg := date.Daily
	switch {
	case aggregation != nil:
		agg = *aggregation
	case r.Last != nil:
		agg = r.Last.Finer()
	}
	return c.report(r, "register", "--"+agg.String(), "--average", "--collapse").Run(ctx)
}

// Forward runs any ledger command on the configured files, restricted to the
// accounts matching patterns.
func (c *Client) Forward(ctx context.Context, args []string, patterns ...string) (string, error) {
	return c.Cmd().Accounts(patterns...).Args(args...).Run(ctx)
}
