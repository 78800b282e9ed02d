package commands_test

import (
	"bytes"
	"context"
	"flag"
	"strings"
	"testing"
	"time"

	"tasksync/internal/app"
	"tasksync/internal/commands"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/service"
	"tasksync/internal/testutil"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc *testutil.FakeService
	app *app.App
	uid string
	in  string
}

// newHarness returns a harness whose app is signed in as a@b.com.
func newHarness(t *testing.T) *harness {
	t.Helper()
	svc := testutil.NewFakeService()
	uid := svc.AddUser("a@b.com", "secret123")
	a := app.New(svc, nil)
	t.Cleanup(a.Close)
	if err := a.Session.LogIn(context.Background(), "a@b.com", "secret123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return &harness{svc: svc, app: a, uid: uid}
}

// newSignedOut returns a harness with no session.
func newSignedOut(t *testing.T) *harness {
	t.Helper()
	svc := testutil.NewFakeService()
	a := app.New(svc, nil)
	t.Cleanup(a.Close)
	return &harness{svc: svc, app: a}
}

// runCommand is a helper to run a command against the harness app.
func runCommand(t *testing.T, cmd commands.Command, h *harness, args []string, quiet bool) (stdout, stderr string, code int) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer

	env := &commands.Env{
		Config: &config.Config{
			Dir:      t.TempDir(),
			Quiet:    quiet,
			Settings: config.DefaultSettings(),
		},
		Out:    &outBuf,
		ErrOut: &errBuf,
		Now:    func() time.Time { return testNow },
	}
	if h != nil {
		env.App = h.app
		env.In = strings.NewReader(h.in)
	}

	code = cmd.Run(context.Background(), env, args)
	return outBuf.String(), errBuf.String(), code
}

// parseFlags registers cmd's flags and parses args, returning the positional rest.
func parseFlags(t *testing.T, cmd commands.Command, args ...string) []string {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs.Args()
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	cmd := &commands.VersionCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "tasksync 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	cmd := &commands.HelpCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	testutil.Golden(t, "help", stdout)
}

// Tests for list command
func TestListCommand_WithTasks(t *testing.T) {
	h := newHarness(t)
	h.svc.SeedTask(h.uid, service.Task{ID: "t1", Title: "Earlier", Priority: service.PriorityLow, Date: "2025-01-01", Completed: true})
	h.svc.SeedTask(h.uid, service.Task{ID: "t2", Title: "Later", Priority: service.PriorityHigh, Date: "2025-01-03", Deadline: "2025-01-04"})

	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, h, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}

	expected := "   1  [ ] Later  (High, 03/01/2025, due 04/01/2025)\n" +
		"   2  [x] Earlier  (Low, 01/01/2025)\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_Long(t *testing.T) {
	h := newHarness(t)
	h.svc.SeedTask(h.uid, service.Task{ID: "t1", Title: "Buy milk", Description: "two litres", Date: "2025-01-01"})

	cmd := &commands.ListCmd{}
	cmd.SetLong(true)
	stdout, _, code := runCommand(t, cmd, h, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	expected := "   1  [ ] Buy milk  (Medium, 01/01/2025)\n        id: t1\n        two litres\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_Empty(t *testing.T) {
	h := newHarness(t)

	stdout, _, code := runCommand(t, &commands.ListCmd{}, h, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "no tasks found\n" {
		t.Errorf("expected 'no tasks found', got %q", stdout)
	}
}

func TestListCommand_EmptyQuiet(t *testing.T) {
	h := newHarness(t)

	stdout, _, code := runCommand(t, &commands.ListCmd{}, h, nil, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected no output in quiet mode, got %q", stdout)
	}
}

func TestListCommand_UnexpectedArgs(t *testing.T) {
	h := newHarness(t)

	_, stderr, code := runCommand(t, &commands.ListCmd{}, h, []string{"work"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: unexpected arguments: work\n" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
	if h.svc.Calls("FetchTasks") != 0 {
		t.Error("expected no fetch")
	}
}

func TestListCommand_NetworkFailure(t *testing.T) {
	h := newHarness(t)
	h.svc.FetchErr = service.NetworkFailure("network unavailable", nil)

	_, stderr, code := runCommand(t, &commands.ListCmd{}, h, nil, false)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stderr != "error: network unavailable\n" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

// Tests for add command
func TestAddCommand_Success(t *testing.T) {
	h := newHarness(t)

	cmd := &commands.AddCmd{}
	args := parseFlags(t, cmd, "--priority", "Low", "Buy", "milk")
	stdout, stderr, code := runCommand(t, cmd, h, args, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "ok t1\n" {
		t.Errorf("expected 'ok t1', got %q", stdout)
	}

	tasks := h.svc.Tasks(h.uid)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 stored task, got %d", len(tasks))
	}
	got := tasks[0]
	if got.Title != "Buy milk" || got.Priority != service.PriorityLow {
		t.Errorf("unexpected task: %+v", got)
	}
	if got.Date != "2025-03-10" || got.Deadline != "2025-03-11" {
		t.Errorf("expected default dates 2025-03-10 and 2025-03-11, got %q and %q", got.Date, got.Deadline)
	}
	if got.Completed {
		t.Error("new task should be open")
	}

	state := h.app.Tasks.State()
	if len(state.Tasks) != 1 || state.Tasks[0].ID != "t1" {
		t.Errorf("expected t1 at the front of the local list, got %+v", state.Tasks)
	}
}

func TestAddCommand_ExplicitDates(t *testing.T) {
	h := newHarness(t)

	cmd := &commands.AddCmd{}
	args := parseFlags(t, cmd, "--date", "01/01/2025", "--deadline", "15/01/2025", "--desc", "  for the party ", "Cake")
	_, _, code := runCommand(t, cmd, h, args, true)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	got := h.svc.Tasks(h.uid)[0]
	if got.Date != "2025-01-01" || got.Deadline != "2025-01-15" {
		t.Errorf("unexpected dates: %q %q", got.Date, got.Deadline)
	}
	if got.Description != "for the party" {
		t.Errorf("expected trimmed description, got %q", got.Description)
	}
	if got.Priority != service.PriorityMedium {
		t.Errorf("expected default priority Medium, got %q", got.Priority)
	}
}

// TestAddCommand_DeadlineFromToday verifies the default deadline is a day
// from now even when the task is dated elsewhere.
func TestAddCommand_DeadlineFromToday(t *testing.T) {
	h := newHarness(t)

	cmd := &commands.AddCmd{}
	args := parseFlags(t, cmd, "--date", "31/12/2024", "Cake")
	_, _, code := runCommand(t, cmd, h, args, true)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	got := h.svc.Tasks(h.uid)[0]
	if got.Date != "2024-12-31" || got.Deadline != "2025-03-11" {
		t.Errorf("unexpected dates: %q %q", got.Date, got.Deadline)
	}
}

// TestListCommand_AcrossYearBoundary verifies newer dates list first when
// the year changes.
func TestListCommand_AcrossYearBoundary(t *testing.T) {
	h := newHarness(t)
	h.svc.SeedTask(h.uid, service.Task{ID: "t1", Title: "Eve", Date: "2024-12-31"})
	h.svc.SeedTask(h.uid, service.Task{ID: "t2", Title: "New year", Date: "2025-01-01"})

	stdout, _, code := runCommand(t, &commands.ListCmd{}, h, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	expected := "   1  [ ] New year  (Medium, 01/01/2025)\n" +
		"   2  [ ] Eve  (Medium, 31/12/2024)\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestAddCommand_Quiet(t *testing.T) {
	h := newHarness(t)

	stdout, _, code := runCommand(t, &commands.AddCmd{}, h, []string{"Buy", "milk"}, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected no output in quiet mode, got %q", stdout)
	}
}

func TestAddCommand_NoTitle(t *testing.T) {
	h := newHarness(t)

	_, stderr, code := runCommand(t, &commands.AddCmd{}, h, []string{"  "}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: title required\n" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
	if h.svc.Calls("AddTask") != 0 {
		t.Error("expected no remote call")
	}
}

func TestAddCommand_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad date", []string{"--date", "2025-01-01", "x"}, "error: invalid date (want DD/MM/YYYY): 2025-01-01\n"},
		{"bad priority", []string{"-p", "Urgent", "x"}, "error: invalid priority: Urgent\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			cmd := &commands.AddCmd{}
			args := parseFlags(t, cmd, tt.args...)

			_, stderr, code := runCommand(t, cmd, h, args, false)

			if code != exitcode.UserError {
				t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
			}
			if stderr != tt.want {
				t.Errorf("expected %q, got %q", tt.want, stderr)
			}
			if h.svc.Calls("AddTask") != 0 {
				t.Error("expected no remote call")
			}
		})
	}
}

// Tests for toggle command
func TestToggleCommand_ByNumber(t *testing.T) {
	h := newHarness(t)
	h.svc.SeedTask(h.uid, service.Task{ID: "t1", Title: "Buy milk", Date: "2025-01-01"})

	stdout, stderr, code := runCommand(t, &commands.ToggleCmd{}, h, []string{"1"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	expected := "   1  [x] Buy milk  (Medium, 01/01/2025)\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
	if !h.svc.Tasks(h.uid)[0].Completed {
		t.Error("expected task to be completed remotely")
	}

	// Toggling again reopens it.
	stdout, _, _ = runCommand(t, &commands.ToggleCmd{}, h, []string{"t1"}, false)
	if stdout != "   1  [ ] Buy milk  (Medium, 01/01/2025)\n" {
		t.Errorf("expected reopened task, got %q", stdout)
	}
}

func TestToggleCommand_UnknownID(t *testing.T) {
	h := newHarness(t)

	_, stderr, code := runCommand(t, &commands.ToggleCmd{}, h, []string{"t9"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: task not found\n" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestToggleCommand_NoRef(t *testing.T) {
	h := newHarness(t)

	_, stderr, code := runCommand(t, &commands.ToggleCmd{}, h, nil, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: task reference required\n" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestToggleCommand_OutOfRange(t *testing.T) {
	h := newHarness(t)
	h.svc.SeedTask(h.uid, service.Task{ID: "t1", Title: "Buy milk"})

	_, stderr, code := runCommand(t, &commands.ToggleCmd{}, h, []string{"5"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: task number out of range: 5\n" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
	if h.svc.Calls("ToggleTask") != 0 {
		t.Error("expected no toggle request")
	}
}

// Tests for rm command
func TestRmCommand_Success(t *testing.T) {
	h := newHarness(t)
	h.svc.SeedTask(h.uid, service.Task{ID: "t1", Title: "Buy milk"})
	h.svc.SeedTask(h.uid, service.Task{ID: "t2", Title: "Buy eggs"})

	stdout, stderr, code := runCommand(t, &commands.RmCmd{}, h, []string{"1"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok', got %q", stdout)
	}

	remaining := h.svc.Tasks(h.uid)
	if len(remaining) != 1 || remaining[0].ID != "t2" {
		t.Errorf("expected only t2 to remain, got %+v", remaining)
	}
	if local := h.app.Tasks.State().Tasks; len(local) != 1 || local[0].ID != "t2" {
		t.Errorf("expected local list [t2], got %+v", local)
	}
}

func TestRmCommand_AlreadyGone(t *testing.T) {
	h := newHarness(t)

	stdout, stderr, code := runCommand(t, &commands.RmCmd{}, h, []string{"t9"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" || stdout != "ok\n" {
		t.Errorf("expected ok, got stdout %q stderr %q", stdout, stderr)
	}
}

func TestRmCommand_NoRef(t *testing.T) {
	h := newHarness(t)

	_, _, code := runCommand(t, &commands.RmCmd{}, h, nil, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
}

func TestTaskCommands_NoSession(t *testing.T) {
	h := newSignedOut(t)

	_, stderr, code := runCommand(t, &commands.RmCmd{}, h, []string{"t1"}, false)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: not signed in\n" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
	if h.svc.Calls("DeleteTask") != 0 {
		t.Error("expected no remote call")
	}
}

// Tests for shell command
func TestShellCommand_Session(t *testing.T) {
	h := newHarness(t)
	h.in = "add Buy milk\nwait\nlist\ntoggle 1\nwait\nlist\nbogus\nquit\n"

	stdout, stderr, code := runCommand(t, &commands.ShellCmd{}, h, nil, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	expected := "added t1\n" +
		"   1  [ ] Buy milk  (Medium, 10/03/2025, due 11/03/2025)\n" +
		"t1 completed\n" +
		"   1  [x] Buy milk  (Medium, 10/03/2025, due 11/03/2025)\n" +
		"unknown command: bogus (type help)\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestShellCommand_FetchAndErrors(t *testing.T) {
	h := newHarness(t)
	h.svc.SeedTask(h.uid, service.Task{ID: "t1", Title: "Buy milk"})
	h.in = "toggle 1\nfetch\nwait\nrm 2\nadd\n"

	stdout, _, code := runCommand(t, &commands.ShellCmd{}, h, nil, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	expected := "error: task number out of range: 1\n" +
		"fetched 1 tasks\n" +
		"error: task number out of range: 2\n" +
		"error: title required\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestShellCommand_Logout(t *testing.T) {
	h := newHarness(t)
	h.in = "whoami\nlogout\nlist\n"

	stdout, _, code := runCommand(t, &commands.ShellCmd{}, h, nil, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "a@b.com (u1)\nsigned out\n" {
		t.Errorf("unexpected output: %q", stdout)
	}
	if h.svc.Calls("LogOut") != 1 {
		t.Errorf("expected 1 LogOut call, got %d", h.svc.Calls("LogOut"))
	}
	if h.app.Session.Current() != nil {
		t.Error("expected no session after logout")
	}
}

func TestShellCommand_Prompt(t *testing.T) {
	h := newHarness(t)
	h.in = "quit\n"

	stdout, _, _ := runCommand(t, &commands.ShellCmd{}, h, nil, false)

	if stdout != "> " {
		t.Errorf("expected a single prompt, got %q", stdout)
	}
}
