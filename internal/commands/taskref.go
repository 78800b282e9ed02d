package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"tasksync/internal/service"
	"tasksync/internal/store"
)

// TaskRef is a parsed task reference: a 1-based position in the list as
// printed by `list`, or a task ID.
type TaskRef struct {
	Num int    // 0 if an ID was given
	ID  string // empty if a number was given
}

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = service.InvalidFailure("task reference required")

// ParseTaskRef parses a task reference from args.
//
// Parsing rules:
//  1. No args → task reference required
//  2. All digits → position in the list
//  3. A single token without whitespace or '/' → task ID
//  4. Anything else → invalid task reference
func ParseTaskRef(args []string) (TaskRef, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return TaskRef{}, ErrTaskRefRequired
	}
	if len(args) > 1 {
		return TaskRef{}, service.InvalidFailure("too many arguments: " + strings.Join(args[1:], " "))
	}

	ref := args[0]
	if isAllDigits(ref) {
		num, err := strconv.Atoi(ref)
		if err != nil || num < 1 {
			return TaskRef{}, service.InvalidFailure("task number out of range: " + ref)
		}
		return TaskRef{Num: num}, nil
	}
	if strings.ContainsFunc(ref, func(r rune) bool { return r == '/' || unicode.IsSpace(r) }) {
		return TaskRef{}, service.InvalidFailure("invalid task reference: " + ref)
	}
	return TaskRef{ID: ref}, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Lookup finds the task ref points at in tasks. An ID that is not in the
// list still resolves, since the list may be stale.
func (ref TaskRef) Lookup(tasks []service.Task) (service.Task, error) {
	if ref.ID != "" {
		for _, t := range tasks {
			if t.ID == ref.ID {
				return t, nil
			}
		}
		return service.Task{ID: ref.ID}, nil
	}
	if ref.Num < 1 || ref.Num > len(tasks) {
		return service.Task{}, service.InvalidFailure(fmt.Sprintf("task number out of range: %d", ref.Num))
	}
	return tasks[ref.Num-1], nil
}

// resolveTask turns args into a task, fetching the list when a number was given.
func resolveTask(ctx context.Context, tasks *store.TaskStore, args []string) (service.Task, error) {
	ref, err := ParseTaskRef(args)
	if err != nil {
		return service.Task{}, err
	}
	if ref.Num > 0 {
		if err := tasks.Fetch(ctx); err != nil {
			return service.Task{}, err
		}
	}
	return ref.Lookup(tasks.State().Tasks)
}
