package commands

import (
	"context"
	"flag"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command. Removing a task that is already gone
// succeeds.
type RmCmd struct{}

func (c *RmCmd) Name() string       { return "rm" }
func (c *RmCmd) Aliases() []string  { return []string{"delete"} }
func (c *RmCmd) Synopsis() string   { return "Delete a task" }
func (c *RmCmd) Usage() string      { return "tasksync rm <n|task-id>" }
func (c *RmCmd) NeedsService() bool { return true }
func (c *RmCmd) NeedsAuth() bool    { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, env *Env, args []string) int {
	task, err := resolveTask(ctx, env.App.Tasks, args)
	if err != nil {
		return env.fail(err)
	}
	if err := env.App.Tasks.Delete(ctx, task.ID); err != nil {
		return env.fail(err)
	}
	return env.ok()
}
