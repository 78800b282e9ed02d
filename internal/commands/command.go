// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tasksync/internal/app"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/service"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsService returns true if the command talks to the backend.
	// Commands like help and version return false.
	NeedsService() bool

	// NeedsAuth returns true if the command requires a signed-in session.
	// The dispatcher restores the remembered session before Run.
	NeedsAuth() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, env *Env, args []string) int
}

// Env is what a command runs against.
type Env struct {
	// Config is always provided (config dir, settings).
	Config *config.Config

	// App is nil if NeedsService() returns false.
	App *app.App

	// Log writes to ErrOut at the configured level.
	Log *zap.Logger

	// Metrics is nil when metrics are disabled.
	Metrics prometheus.Gatherer

	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer

	// Now defaults to time.Now.
	Now func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

// ok prints "ok" unless quiet.
func (e *Env) ok() int {
	if !e.Config.Quiet {
		fmt.Fprintln(e.Out, "ok")
	}
	return exitcode.Success
}

// fail prints err and returns its exit code.
func (e *Env) fail(err error) int {
	fmt.Fprintf(e.ErrOut, "error: %v\n", err)
	return exitcode.ForError(err)
}

func errUnexpectedArgs(args []string) error {
	return service.InvalidFailure("unexpected arguments: " + strings.Join(args, " "))
}
