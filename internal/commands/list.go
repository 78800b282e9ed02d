package commands

import (
	"context"
	"flag"

	"tasksync/internal/exitcode"
	"tasksync/internal/output"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `tasksync` (no args) and `tasksync list`.
type ListCmd struct {
	long bool
}

// SetLong enables the long format (for testing).
func (c *ListCmd) SetLong(long bool) { c.long = long }

func (c *ListCmd) Name() string       { return "list" }
func (c *ListCmd) Aliases() []string  { return []string{"ls"} }
func (c *ListCmd) Synopsis() string   { return "List tasks, newest date first" }
func (c *ListCmd) Usage() string      { return "tasksync list [--long]" }
func (c *ListCmd) NeedsService() bool { return true }
func (c *ListCmd) NeedsAuth() bool    { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.long, "long", false, "")
	fs.BoolVar(&c.long, "l", false, "")
}

func (c *ListCmd) Run(ctx context.Context, env *Env, args []string) int {
	if len(args) > 0 {
		return env.fail(errUnexpectedArgs(args))
	}

	tasks := env.App.Tasks
	if err := tasks.Fetch(ctx); err != nil {
		return env.fail(err)
	}

	output.FormatTasks(env.Out, tasks.State().Tasks, c.long, env.Config.Quiet)
	return exitcode.Success
}
