// Package exitcode defines exit codes for the CLI.
package exitcode

import "tasksync/internal/service"

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, invalid input, task not found).
	UserError = 1

	// AuthError indicates an auth/config error.
	AuthError = 2

	// BackendError indicates a backend/API/network error.
	BackendError = 3
)

// ForError maps a failure to its exit code.
func ForError(err error) int {
	if err == nil {
		return Success
	}
	switch service.KindOf(err) {
	case service.KindInvalid, service.KindNotFound:
		return UserError
	case service.KindAuth:
		return AuthError
	default:
		return BackendError
	}
}
