package cmd

import (
	"context"
	"encoding/json"
	"flag"

	"github.com/google/subcommands"
)

type showConfigCmd struct{}

func (*showConfigCmd) Name() string     { return "show-config" }
func (*showConfigCmd) Synopsis() string { return "print the effective configuration" }
func (*showConfigCmd) Usage() string {
	return `lm show-config

  Prints the configuration after merging the defaults, the configuration
  files and the LM_* environment variables, as JSON. The API key is masked.
`
}

func (c *showConfigCmd) SetFlags(f *flag.FlagSet) {}

func (c *showConfigCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		return fail("%v", err)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cfg.Masked()); err != nil {
		return fail("%v", err)
	}
	return subcommands.ExitSuccess
}
