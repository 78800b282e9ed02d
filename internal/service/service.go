// Package service defines the backend-agnostic contract for auth and task operations.
package service

import "context"

// Service is the remote service adapter.
// All Firebase calls go through this interface.
// Stores never import the Google SDK directly.
type Service interface {
	// SignUp creates an account and signs it in.
	SignUp(ctx context.Context, email, password string) (Session, error)

	// LogIn signs in an existing account.
	LogIn(ctx context.Context, email, password string) (Session, error)

	// LogOut drops the stored credentials. Best effort.
	LogOut(ctx context.Context) error

	// RestoreSession returns the remembered session, or nil if there is none.
	RestoreSession(ctx context.Context) (*Session, error)

	// FetchTasks returns the session's tasks ordered by date descending.
	// Results are in server order (no client-side sorting).
	FetchTasks(ctx context.Context, sess Session) ([]Task, error)

	// AddTask creates a task from draft. The server assigns the ID and
	// creation time; the task starts not completed.
	AddTask(ctx context.Context, sess Session, draft Draft) (Task, error)

	// ToggleTask negates the completion flag on the server and returns
	// the new value.
	ToggleTask(ctx context.Context, sess Session, taskID string) (bool, error)

	// DeleteTask deletes a task. Returns a NotFound failure if it does not exist.
	DeleteTask(ctx context.Context, sess Session, taskID string) error
}
