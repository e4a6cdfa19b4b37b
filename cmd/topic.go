package cmd

import (
	"context"
	"flag"

	"github.com/etnz/pricedb/docs"
	"github.com/google/subcommands"
)

type topicCmd struct {
	plain bool
}

func (*topicCmd) Name() string     { return "topic" }
func (*topicCmd) Synopsis() string { return "show documentation" }
func (*topicCmd) Usage() string {
	return `lm topic [-plain] [<topic>...]

  Shows the documentation of the topics, '*' for all of them. Without topic,
  lists the available ones.
`
}

func (c *topicCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.plain, "plain", false, "Print raw markdown instead of rendering it")
}

func (c *topicCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	topics := f.Args()
	if len(topics) == 0 {
		topics = []string{docs.Readme}
	}

	doc, err := docs.GetTopics(topics...)
	if err != nil {
		return fail("cannot read doc: %v", err)
	}
	if c.plain {
		_, _ = stdout.Write([]byte(doc))
	} else {
		printMarkdown(doc)
	}
	return subcommands.ExitSuccess
}
