package cmd

import (
	"flag"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// predictors of flag values, by flag name. Flags not listed here complete
// nothing but their name.
var predictors = map[string]complete.Predictor{
	"config":       predict.Files("*.yaml"),
	"metrics-file": predict.Files("*.prom"),
	"o":            predict.Files("*"),
	"last":         predict.Set{"day", "week", "month", "quarter", "year"},
	"agg":          predict.Set{"day", "week", "month", "quarter", "year"},
	"schedule":     predict.Set{"@hourly", "@daily", "@weekly", "@monthly"},
}

// flagsOf returns the completion of every flag of set.
func flagsOf(set *flag.FlagSet) map[string]complete.Predictor {
	flags := make(map[string]complete.Predictor)
	set.VisitAll(func(f *flag.Flag) {
		p, ok := predictors[f.Name]
		if !ok {
			p = predict.Something
		}
		if isBool(f) {
			p = predict.Nothing
		}
		flags[f.Name] = p
	})
	return flags
}

func isBool(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

// Completion returns the shell completion of the commands registered in
// commander, and of the global flags.
func Completion(commander *subcommands.Commander) *complete.Command {
	root := &complete.Command{
		Sub:   make(map[string]*complete.Command),
		Flags: flagsOf(flag.CommandLine),
	}
	commander.VisitCommands(func(_ *subcommands.CommandGroup, c subcommands.Command) {
		set := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
		c.SetFlags(set)
		root.Sub[c.Name()] = &complete.Command{Flags: flagsOf(set)}
	})
	return root
}
