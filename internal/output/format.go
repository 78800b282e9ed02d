// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"tasksync/internal/service"
)

// DateLayout is the DD/MM/YYYY form dates are shown and typed in.
const DateLayout = "02/01/2006"

// FormatTask formats a numbered task line.
// Format: "{N:>4}  [x] {TITLE}  ({PRIORITY}, {DATE}, due {DEADLINE})\n"
// Empty details are left out; the parenthesis is dropped when none remain.
func FormatTask(w io.Writer, num int, task service.Task) {
	fmt.Fprintf(w, "%4d  %s %s%s\n", num, checkbox(task.Completed), normalize(task.Title), details(task))
}

// FormatTaskLong formats a task line followed by its ID and description.
func FormatTaskLong(w io.Writer, num int, task service.Task) {
	FormatTask(w, num, task)
	fmt.Fprintf(w, "        id: %s\n", task.ID)
	if desc := strings.TrimSpace(task.Description); desc != "" {
		fmt.Fprintf(w, "        %s\n", normalizeLine(desc))
	}
}

// FormatTasks formats a task list, numbering from 1.
// An empty list prints "no tasks found" unless quiet.
func FormatTasks(w io.Writer, tasks []service.Task, long, quiet bool) {
	if len(tasks) == 0 {
		if !quiet {
			fmt.Fprintln(w, "no tasks found")
		}
		return
	}
	for i, task := range tasks {
		if long {
			FormatTaskLong(w, i+1, task)
		} else {
			FormatTask(w, i+1, task)
		}
	}
}

// FormatSession formats the signed-in account.
func FormatSession(w io.Writer, sess service.Session) {
	email := sess.Email
	if email == "" {
		email = "(no email)"
	}
	fmt.Fprintf(w, "%s (%s)\n", email, sess.UID)
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func details(task service.Task) string {
	var parts []string
	if task.Priority != "" {
		parts = append(parts, string(task.Priority))
	}
	if task.Date != "" {
		parts = append(parts, displayDate(task.Date))
	}
	if task.Deadline != "" {
		parts = append(parts, "due "+displayDate(task.Deadline))
	}
	if len(parts) == 0 {
		return ""
	}
	return "  (" + strings.Join(parts, ", ") + ")"
}

// displayDate renders a stored date as DD/MM/YYYY. Anything that does not
// parse is shown as is.
func displayDate(s string) string {
	t, err := time.Parse(service.DateLayout, s)
	if err != nil {
		return s
	}
	return t.Format(DateLayout)
}

// normalize normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalize(title string) string {
	title = normalizeLine(title)
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}

func normalizeLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
