package commands

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"tasksync/internal/exitcode"
	"tasksync/internal/service"
	"tasksync/internal/store"
)

func init() {
	Register(&SignupCmd{})
	Register(&LoginCmd{})
}

// SignupCmd implements the signup command.
type SignupCmd struct {
	email string
}

// SetEmail sets the email (for testing).
func (c *SignupCmd) SetEmail(email string) { c.email = email }

func (c *SignupCmd) Name() string       { return "signup" }
func (c *SignupCmd) Aliases() []string  { return []string{"register"} }
func (c *SignupCmd) Synopsis() string   { return "Create an account and sign in" }
func (c *SignupCmd) Usage() string      { return "tasksync signup --email <email>" }
func (c *SignupCmd) NeedsService() bool { return true }
func (c *SignupCmd) NeedsAuth() bool    { return false }

func (c *SignupCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
}

// Run reads the password and its confirmation from stdin, one per line.
func (c *SignupCmd) Run(ctx context.Context, env *Env, args []string) int {
	email, code := requireEmail(env, c.email)
	if code != exitcode.Success {
		return code
	}

	lines := bufio.NewScanner(env.In)
	password, err := readSecret(env, lines, "Password: ")
	if err != nil {
		return env.fail(err)
	}
	confirm, err := readSecret(env, lines, "Confirm password: ")
	if err != nil {
		return env.fail(err)
	}

	form := env.App.Form
	form.Update(store.SetEmail(email))
	form.Update(store.SetPassword(password))
	form.Update(store.SetConfirmPassword(confirm))
	if err := form.SubmitSignUp(ctx); err != nil {
		return env.fail(err)
	}
	return env.ok()
}

// LoginCmd implements the login command.
type LoginCmd struct {
	email string
}

// SetEmail sets the email (for testing).
func (c *LoginCmd) SetEmail(email string) { c.email = email }

func (c *LoginCmd) Name() string       { return "login" }
func (c *LoginCmd) Aliases() []string  { return nil }
func (c *LoginCmd) Synopsis() string   { return "Sign in with email and password" }
func (c *LoginCmd) Usage() string      { return "tasksync login --email <email>" }
func (c *LoginCmd) NeedsService() bool { return true }
func (c *LoginCmd) NeedsAuth() bool    { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
}

// Run reads the password from stdin.
func (c *LoginCmd) Run(ctx context.Context, env *Env, args []string) int {
	email, code := requireEmail(env, c.email)
	if code != exitcode.Success {
		return code
	}

	password, err := readSecret(env, bufio.NewScanner(env.In), "Password: ")
	if err != nil {
		return env.fail(err)
	}

	form := env.App.Form
	form.Update(store.SetEmail(email))
	form.Update(store.SetPassword(password))
	if err := form.SubmitLogIn(ctx); err != nil {
		return env.fail(err)
	}
	return env.ok()
}

func requireEmail(env *Env, email string) (string, int) {
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Fprintln(env.ErrOut, "error: --email required")
		return "", exitcode.UserError
	}
	return email, exitcode.Success
}

// readSecret prompts on ErrOut and reads one line. Prompts are suppressed
// in quiet mode.
func readSecret(env *Env, lines *bufio.Scanner, prompt string) (string, error) {
	if !env.Config.Quiet {
		fmt.Fprint(env.ErrOut, prompt)
	}
	if env.In == nil || !lines.Scan() {
		if err := lines.Err(); err != nil && err != io.EOF {
			return "", err
		}
		return "", service.InvalidFailure("password required")
	}
	return strings.TrimRight(lines.Text(), "\r"), nil
}
