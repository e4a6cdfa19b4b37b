package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/pricedb"
	"github.com/google/subcommands"
)

type exportCmd struct {
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the price database in the ledger price format" }
func (*exportCmd) Usage() string {
	return `lm export [-o <file>]

  Writes every record of the price database, in storage order, as ledger price
  directives:

    P 2024/02/14 00:00:00 USD 0.93 EUR

  This is mostly useful with the sqlite driver, the file driver already stores
  this format.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "Output file (default standard output)")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	if c.output == "" {
		if _, err := pricedb.Export(stdout, store); err != nil {
			return fail("export failed: %v", err)
		}
		return subcommands.ExitSuccess
	}

	n, err := exportFile(c.output, store)
	if err != nil {
		return fail("export failed: %v", err)
	}
	fmt.Fprintf(stdout, "%d rates written to %s\n", n, c.output)
	return subcommands.ExitSuccess
}

// exportFile writes store to the file at path. A failure to flush the file on
// close is reported.
func exportFile(path string, store pricedb.Store) (n int, err error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return pricedb.Export(file, store)
}
