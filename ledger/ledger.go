// Package ledger runs the external ledger accounting tool on the configured
// transactions file and price database.
//
// The tool is treated as an opaque collaborator: commands are built as argument
// lists and its standard output is returned as is.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/etnz/pricedb/date"
)

// DefaultBinary is the name of the ledger executable looked up in PATH.
const DefaultBinary = "ledger"

// ErrNoAccount is returned when account patterns were given but none matched.
var ErrNoAccount = errors.New("no account matches")

// ExecutionError is returned when the ledger tool fails or writes anything to
// its standard error.
type ExecutionError struct {
	Args   []string
	Stderr string
	Err    error // process error, nil if it exited successfully
}

func (e *ExecutionError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("ledger %s: %s", strings.Join(e.Args, " "), msg)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// runner executes a command and returns its standard output and error.
type runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Client runs ledger commands.
type Client struct {
	Binary       string // empty means DefaultBinary
	Transactions string // the journal passed with -f
	PriceDB      string // passed with --price-db when the file exists

	Clock  func() time.Time // nil means time.Now
	Logger *slog.Logger     // nil means slog.Default()

	run runner // nil means execRunner
}

func (c *Client) binary() string {
	if c.Binary == "" {
		return DefaultBinary
	}
	return c.Binary
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Client) today() date.Date {
	if c.Clock == nil {
		return date.Today()
	}
	return date.FromTime(c.Clock())
}

// base returns the arguments common to every command.
func (c *Client) base() []string { return []string{"-f", c.Transactions} }

// Exec runs the ledger binary with args and returns its standard output.
//
// Any output on standard error is a failure, even if the process exits with
// status zero.
func (c *Client) Exec(ctx context.Context, args ...string) (string, error) {
	run := c.run
	if run == nil {
		run = execRunner
	}
	c.logger().Debug("exec", "cmd", c.binary(), "args", args)
	stdout, stderr, err := run(ctx, c.binary(), args...)
	if err != nil || len(bytes.TrimSpace(stderr)) > 0 {
		return "", &ExecutionError{Args: args, Stderr: string(stderr), Err: err}
	}
	return string(stdout), nil
}

// Accounts lists every account known to ledger, in ledger's order.
func (c *Client) Accounts(ctx context.Context) ([]string, error) {
	out, err := c.Exec(ctx, append(c.base(), "accounts")...)
	if err != nil {
		return nil, err
	}
	var accounts []string
	for _, line := range strings.Split(out, "\n") {
		if a := strings.TrimSpace(line); a != "" {
			accounts = append(accounts, a)
		}
	}
	return accounts, nil
}

// Cmd starts a new command.
func (c *Client) Cmd() *Cmd { return &Cmd{client: c} }

type option struct{ name, value string }

// Cmd builds a ledger command line:
//
//	ledger -f <transactions> <args...> [--price-db <path>] <options...> <accounts...>
type Cmd struct {
	client   *Client
	args     []string
	options  []option
	patterns []string
	excludes []string
}

// Args appends positional arguments, e.g. "balance".
func (cmd *Cmd) Args(args ...string) *Cmd {
	cmd.args = append(cmd.args, args...)
	return cmd
}

// Option sets "--name value". Underscores in name become dashes. An empty
// value is ignored. Setting the same option twice keeps the last value.
func (cmd *Cmd) Option(name, value string) *Cmd {
	if value == "" {
		return cmd
	}
	name = "--" + strings.ReplaceAll(strings.TrimLeft(name, "-"), "_", "-")
	for i, o := range cmd.options {
		if o.name == name {
			cmd.options[i].value = value
			return cmd
		}
	}
	cmd.options = append(cmd.options, option{name, value})
	return cmd
}

// Accounts restricts the command to the accounts matching any of the patterns.
//
// An account matches a pattern if the regular expression matches at the
// beginning of the account name, or if the account name contains the pattern
// literally.
func (cmd *Cmd) Accounts(patterns ...string) *Cmd {
	cmd.patterns = append(cmd.patterns, patterns...)
	return cmd
}

// Exclude removes the accounts matching any of the patterns, with the same
// matching rules as Accounts.
func (cmd *Cmd) Exclude(patterns ...string) *Cmd {
	cmd.excludes = append(cmd.excludes, patterns...)
	return cmd
}

// Build returns the ledger arguments, resolving account patterns by listing
// the accounts.
func (cmd *Cmd) Build(ctx context.Context) ([]string, error) {
	args := append(cmd.client.base(), cmd.args...)

	if p := cmd.client.PriceDB; p != "" {
		if _, err := os.Stat(p); err == nil {
			args = append(args, "--price-db", p)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("cannot access price database %q: %w", p, err)
		}
	}
	for _, o := range cmd.options {
		args = append(args, o.name, o.value)
	}

	if len(cmd.patterns) == 0 {
		return args, nil
	}
	accounts, err := cmd.client.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	selected, err := search(accounts, cmd.patterns, cmd.excludes)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoAccount, cmd.patterns)
	}
	return append(args, selected...), nil
}

// Run builds and executes the command.
func (cmd *Cmd) Run(ctx context.Context) (string, error) {
	args, err := cmd.Build(ctx)
	if err != nil {
		return "", err
	}
	return cmd.client.Exec(ctx, args...)
}

// matcher reports whether an account matches a pattern.
type matcher func(account string) bool

func compile(pattern string) (matcher, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("invalid account pattern %q: %w", pattern, err)
	}
	return func(account string) bool {
		return re.MatchString(account) || strings.Contains(account, pattern)
	}, nil
}

func compileAll(patterns []string) ([]matcher, error) {
	ms := make([]matcher, 0, len(patterns))
	for _, p := range patterns {
		m, err := compile(p)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return ms, nil
}

// search returns the accounts matching any include and no exclude, in the
// order of accounts, without duplicates.
func search(accounts, includes, excludes []string) ([]string, error) {
	in, err := compileAll(includes)
	if err != nil {
		return nil, err
	}
	out, err := compileAll(excludes)
	if err != nil {
		return nil, err
	}
	matchAny := func(ms []matcher, a string) bool {
		return slices.ContainsFunc(ms, func(m matcher) bool { return m(a) })
	}

	var selected []string
	for _, a := range accounts {
		if matchAny(in, a) && !matchAny(out, a) && !slices.Contains(selected, a) {
			selected = append(selected, a)
		}
	}
	return selected, nil
}
