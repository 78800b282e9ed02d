package commands

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"tasksync/internal/exitcode"
	"tasksync/internal/output"
	"tasksync/internal/service"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	description string
	priority    string
	date        string
	deadline    string
}

func (c *AddCmd) Name() string       { return "add" }
func (c *AddCmd) Aliases() []string  { return []string{"create"} }
func (c *AddCmd) Synopsis() string   { return "Create a task" }
func (c *AddCmd) NeedsService() bool { return true }
func (c *AddCmd) NeedsAuth() bool    { return true }

func (c *AddCmd) Usage() string {
	return "tasksync add [--desc s] [-p prio] [--date d] [--deadline d] <title...>"
}

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.description, "desc", "", "")
	fs.StringVar(&c.priority, "priority", "", "")
	fs.StringVar(&c.priority, "p", "", "")
	fs.StringVar(&c.date, "date", "", "")
	fs.StringVar(&c.deadline, "deadline", "", "")
}

func (c *AddCmd) Run(ctx context.Context, env *Env, args []string) int {
	draft, err := c.draft(env.now(), args)
	if err != nil {
		return env.fail(err)
	}

	task, err := env.App.Tasks.Add(ctx, draft)
	if err != nil {
		return env.fail(err)
	}

	if !env.Config.Quiet {
		fmt.Fprintf(env.Out, "ok %s\n", task.ID)
	}
	return exitcode.Success
}

// draft builds the task input. The date defaults to today and the deadline
// to this time tomorrow, whatever date was chosen.
func (c *AddCmd) draft(now time.Time, args []string) (service.Draft, error) {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		return service.Draft{}, service.InvalidFailure("title required")
	}

	priority, err := service.ParsePriority(c.priority)
	if err != nil {
		return service.Draft{}, err
	}

	date := now
	if c.date != "" {
		if date, err = parseDate(c.date); err != nil {
			return service.Draft{}, err
		}
	}
	deadline := now.AddDate(0, 0, 1)
	if c.deadline != "" {
		if deadline, err = parseDate(c.deadline); err != nil {
			return service.Draft{}, err
		}
	}

	return service.Draft{
		Title:       title,
		Description: strings.TrimSpace(c.description),
		Priority:    priority,
		Date:        date.Format(service.DateLayout),
		Deadline:    deadline.Format(service.DateLayout),
	}, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(output.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, service.InvalidFailure("invalid date (want DD/MM/YYYY): " + s)
	}
	return t, nil
}
