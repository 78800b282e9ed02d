package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tasksync/internal/exitcode"
	"tasksync/internal/metrics"
	"tasksync/internal/output"
	"tasksync/internal/service"
	"tasksync/internal/store"
)

func init() {
	Register(&ShellCmd{})
}

// ShellCmd implements the shell command: an interactive loop whose task
// intents run in the background while the prompt stays responsive.
type ShellCmd struct{}

func (c *ShellCmd) Name() string       { return "shell" }
func (c *ShellCmd) Aliases() []string  { return nil }
func (c *ShellCmd) Synopsis() string   { return "Interactive session; type help for commands" }
func (c *ShellCmd) Usage() string      { return "tasksync shell" }
func (c *ShellCmd) NeedsService() bool { return true }
func (c *ShellCmd) NeedsAuth() bool    { return true }

func (c *ShellCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ShellCmd) Run(ctx context.Context, env *Env, args []string) int {
	if len(args) > 0 {
		return env.fail(errUnexpectedArgs(args))
	}
	if env.In == nil {
		return env.fail(errors.New("shell needs an input stream"))
	}

	sh := &shell{env: env, out: &syncWriter{w: env.Out}, status: env.App.Session.State().Status}
	defer sh.wg.Wait()

	stop := env.App.Session.Subscribe(sh.sessionChanged)
	defer stop()

	if addr := env.Config.Settings.Metrics.Addr; addr != "" && env.Metrics != nil {
		shutdown := serveMetrics(addr, env.Metrics, env.logger())
		defer shutdown()
	}

	lines := bufio.NewScanner(env.In)
	for {
		sh.prompt()
		if !lines.Scan() {
			break
		}
		if done := sh.exec(ctx, lines.Text()); done {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	if err := lines.Err(); err != nil {
		return env.fail(err)
	}
	return exitcode.Success
}

const shellHelp = `Commands:
  list              Print the tasks held locally
  fetch             Reload tasks from the server (alias: refresh)
  add [flags] <t>   Create a task; flags as for tasksync add
  toggle <n|id>     Flip a task's completion (alias: done)
  rm <n|id>         Delete a task (alias: delete)
  wait              Wait for pending requests
  clear             Drop the last recorded error
  whoami            Print the signed-in account
  logout            Sign out and leave the shell
  quit              Leave the shell (alias: exit)
`

type shell struct {
	env    *Env
	out    *syncWriter
	wg     sync.WaitGroup
	status store.Status // last status reported by sessionChanged
}

// exec runs one input line and reports whether the loop should stop.
func (sh *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name, args := fields[0], fields[1:]
	app := sh.env.App

	switch name {
	case "quit", "exit":
		return true
	case "help", "?":
		sh.out.print(shellHelp)
	case "list", "ls":
		var b strings.Builder
		output.FormatTasks(&b, app.Tasks.State().Tasks, len(args) > 0 && args[0] == "-l", false)
		sh.out.print(b.String())
	case "fetch", "refresh":
		sh.async(func() {
			if err := app.Tasks.Fetch(ctx); err != nil {
				sh.failed(err)
				return
			}
			sh.out.printf("fetched %d tasks\n", len(app.Tasks.State().Tasks))
		})
	case "add", "create":
		cmd := &AddCmd{}
		fs := flag.NewFlagSet("add", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		cmd.RegisterFlags(fs)
		if err := fs.Parse(args); err != nil {
			sh.failed(err)
			return false
		}
		draft, err := cmd.draft(sh.env.now(), fs.Args())
		if err != nil {
			sh.failed(err)
			return false
		}
		sh.async(func() {
			task, err := app.Tasks.Add(ctx, draft)
			if err != nil {
				sh.failed(err)
				return
			}
			sh.out.printf("added %s\n", task.ID)
		})
	case "toggle", "done":
		task, err := sh.lookup(args)
		if err != nil {
			sh.failed(err)
			return false
		}
		sh.async(func() {
			completed, err := app.Tasks.Toggle(ctx, task.ID)
			if err != nil {
				sh.failed(err)
				return
			}
			state := "open"
			if completed {
				state = "completed"
			}
			sh.out.printf("%s %s\n", task.ID, state)
		})
	case "rm", "delete":
		task, err := sh.lookup(args)
		if err != nil {
			sh.failed(err)
			return false
		}
		sh.async(func() {
			if err := app.Tasks.Delete(ctx, task.ID); err != nil {
				sh.failed(err)
				return
			}
			sh.out.printf("removed %s\n", task.ID)
		})
	case "wait":
		sh.wg.Wait()
	case "clear":
		app.Tasks.ClearError()
		app.Session.ClearError()
	case "whoami":
		sess := app.Session.Current()
		if sess == nil {
			sh.out.print("not logged in\n")
			return false
		}
		var b strings.Builder
		output.FormatSession(&b, *sess)
		sh.out.print(b.String())
	case "logout":
		sh.wg.Wait()
		app.Session.LogOut(ctx)
		return true
	default:
		sh.out.printf("unknown command: %s (type help)\n", name)
	}
	return false
}

// lookup resolves a task reference against the local list without
// fetching, so numbers refer to what `list` last printed.
func (sh *shell) lookup(args []string) (service.Task, error) {
	ref, err := ParseTaskRef(args)
	if err != nil {
		return service.Task{}, err
	}
	return ref.Lookup(sh.env.App.Tasks.State().Tasks)
}

func (sh *shell) async(fn func()) {
	sh.wg.Add(1)
	go func() {
		defer sh.wg.Done()
		fn()
	}()
}

func (sh *shell) failed(err error) {
	sh.out.printf("error: %v\n", err)
}

func (sh *shell) prompt() {
	if !sh.env.Config.Quiet {
		sh.out.print("> ")
	}
}

// sessionChanged runs under the session store's emit lock. It must only
// write output.
func (sh *shell) sessionChanged(st store.SessionState) {
	if st.Status == sh.status {
		return
	}
	sh.status = st.Status
	switch st.Status {
	case store.Unauthenticated:
		sh.out.print("signed out\n")
	case store.Authenticated:
		sh.out.printf("signed in as %s\n", st.Session.Email)
	}
}

// serveMetrics exposes gatherer on addr until the returned func is called.
func serveMetrics(addr string, gatherer prometheus.Gatherer, log *zap.Logger) (shutdown func()) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Handler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	log.Debug("serving metrics", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) print(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	io.WriteString(s.w, text)
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}
