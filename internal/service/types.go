package service

import (
	"strings"
	"time"
)

// Session is the identity of the signed-in user.
type Session struct {
	UID   string
	Email string // empty if the provider returned none
}

// DateLayout is the form task dates travel in between the stores and the
// backend. Dates in this form order chronologically as plain strings.
const DateLayout = "2006-01-02"

// Priority is a task priority level.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// ParsePriority parses a priority name, case-insensitive.
// An empty name yields PriorityMedium.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "medium":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	}
	return "", InvalidFailure("invalid priority: " + s)
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Task represents a single task item.
type Task struct {
	ID          string
	Title       string
	Description string
	Priority    Priority
	Date        string // DateLayout
	Deadline    string // DateLayout, may be empty
	Completed   bool
	CreatedAt   time.Time
}

// Draft holds the user-supplied fields of a task that does not exist yet.
type Draft struct {
	Title       string
	Description string
	Priority    Priority
	Date        string
	Deadline    string
}

// Validate checks a draft before it is sent anywhere.
// An empty priority is defaulted to PriorityMedium.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return InvalidFailure("title required")
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	if !d.Priority.Valid() {
		return InvalidFailure("invalid priority: " + string(d.Priority))
	}
	for _, date := range []string{d.Date, d.Deadline} {
		if date == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, date); err != nil {
			return InvalidFailure("invalid date: " + date)
		}
	}
	return nil
}

// Task builds the task the server would store for this draft.
func (d Draft) Task(id string, createdAt time.Time) Task {
	return Task{
		ID:          id,
		Title:       d.Title,
		Description: d.Description,
		Priority:    d.Priority,
		Date:        d.Date,
		Deadline:    d.Deadline,
		Completed:   false,
		CreatedAt:   createdAt,
	}
}
