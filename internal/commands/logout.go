package commands

import (
	"context"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"tasksync/internal/exitcode"
	"tasksync/internal/output"
	"tasksync/internal/service"
	"tasksync/internal/store"
)

func init() {
	Register(&LogoutCmd{})
	Register(&WhoamiCmd{})
}

// LogoutCmd implements the logout command.
type LogoutCmd struct{}

func (c *LogoutCmd) Name() string       { return "logout" }
func (c *LogoutCmd) Aliases() []string  { return nil }
func (c *LogoutCmd) Synopsis() string   { return "Sign out and forget the stored session" }
func (c *LogoutCmd) Usage() string      { return "tasksync logout" }
func (c *LogoutCmd) NeedsService() bool { return true }
func (c *LogoutCmd) NeedsAuth() bool    { return false }

func (c *LogoutCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LogoutCmd) Run(ctx context.Context, env *Env, args []string) int {
	session := env.App.Session
	if err := session.Restore(ctx); err != nil {
		// The remembered session could not be loaded; forget it locally.
		env.logger().Debug("restore before logout failed", zap.Error(err))
		if err := env.Config.RemoveSession(); err != nil {
			return env.fail(err)
		}
		return env.ok()
	}

	if session.State().Status != store.Authenticated {
		if !env.Config.Quiet {
			fmt.Fprintln(env.Out, "not logged in")
		}
		return exitcode.Success
	}

	session.LogOut(ctx)
	return env.ok()
}

// WhoamiCmd implements the whoami command.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Name() string       { return "whoami" }
func (c *WhoamiCmd) Aliases() []string  { return nil }
func (c *WhoamiCmd) Synopsis() string   { return "Print the signed-in account" }
func (c *WhoamiCmd) Usage() string      { return "tasksync whoami" }
func (c *WhoamiCmd) NeedsService() bool { return true }
func (c *WhoamiCmd) NeedsAuth() bool    { return true }

func (c *WhoamiCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WhoamiCmd) Run(ctx context.Context, env *Env, args []string) int {
	sess := env.App.Session.Current()
	if sess == nil {
		return env.fail(service.ErrNoSession)
	}
	output.FormatSession(env.Out, *sess)
	return exitcode.Success
}
