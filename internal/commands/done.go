package commands

import (
	"context"
	"flag"
	"fmt"

	"tasksync/internal/exitcode"
	"tasksync/internal/output"
)

func init() {
	Register(&ToggleCmd{})
}

// ToggleCmd implements the toggle command. It flips the completion flag
// and prints the task as stored by the server.
type ToggleCmd struct{}

func (c *ToggleCmd) Name() string       { return "toggle" }
func (c *ToggleCmd) Aliases() []string  { return []string{"done"} }
func (c *ToggleCmd) Synopsis() string   { return "Mark a task completed, or open again" }
func (c *ToggleCmd) Usage() string      { return "tasksync toggle <n|task-id>" }
func (c *ToggleCmd) NeedsService() bool { return true }
func (c *ToggleCmd) NeedsAuth() bool    { return true }

func (c *ToggleCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ToggleCmd) Run(ctx context.Context, env *Env, args []string) int {
	tasks := env.App.Tasks
	task, err := resolveTask(ctx, tasks, args)
	if err != nil {
		return env.fail(err)
	}

	completed, err := tasks.Toggle(ctx, task.ID)
	if err != nil {
		return env.fail(err)
	}

	if env.Config.Quiet {
		return exitcode.Success
	}
	if task.Title == "" {
		// Referenced by an ID that was not in the local list.
		state := "open"
		if completed {
			state = "completed"
		}
		fmt.Fprintf(env.Out, "%s %s\n", task.ID, state)
		return exitcode.Success
	}
	task.Completed = completed
	output.FormatTask(env.Out, 1, task)
	return exitcode.Success
}
