package commands

import (
	"context"
	"flag"
	"fmt"

	"tasksync/internal/exitcode"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string       { return "help" }
func (c *HelpCmd) Aliases() []string  { return nil }
func (c *HelpCmd) Synopsis() string   { return "Print usage" }
func (c *HelpCmd) Usage() string      { return "tasksync help" }
func (c *HelpCmd) NeedsService() bool { return false }
func (c *HelpCmd) NeedsAuth() bool    { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, env *Env, args []string) int {
	fmt.Fprint(env.Out, "Usage:\n")
	fmt.Fprint(env.Out, "  tasksync  List tasks of the signed-in account\n")
	fmt.Fprint(env.Out, DefaultRegistry.Summary())
	fmt.Fprint(env.Out, commonFlags)
	return exitcode.Success
}

const commonFlags = `
Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr
`
