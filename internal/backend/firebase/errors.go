package firebase

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"tasksync/internal/service"
)

const msgSessionExpired = "session expired (run: tasksync login)"

// authMessages maps Identity Toolkit and secure-token error codes to
// user-facing messages.
var authMessages = map[string]string{
	"EMAIL_EXISTS":                "email already in use",
	"EMAIL_NOT_FOUND":             "invalid email or password",
	"INVALID_PASSWORD":            "invalid email or password",
	"INVALID_LOGIN_CREDENTIALS":   "invalid email or password",
	"WEAK_PASSWORD":               "password should be at least 6 characters",
	"INVALID_EMAIL":               "invalid email address",
	"MISSING_EMAIL":               "email required",
	"MISSING_PASSWORD":            "password required",
	"TOO_MANY_ATTEMPTS_TRY_LATER": "too many attempts, try again later",
	"USER_DISABLED":               "account disabled",
	"OPERATION_NOT_ALLOWED":       "email sign-in is disabled for this project",
	"TOKEN_EXPIRED":               msgSessionExpired,
	"INVALID_REFRESH_TOKEN":       msgSessionExpired,
	"INVALID_ID_TOKEN":            msgSessionExpired,
	"USER_NOT_FOUND":              msgSessionExpired,
}

// authCode extracts the leading error code from messages such as
// "WEAK_PASSWORD : Password should be at least 6 characters".
func authCode(msg string) string {
	code, _, _ := strings.Cut(strings.TrimSpace(msg), " ")
	return strings.TrimRight(code, ":")
}

// wrapError maps backend errors onto service failures with fixed messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var f *service.Failure
	if errors.As(err, &f) {
		return f
	}

	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return service.NetworkFailure("request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return service.NetworkFailure("request canceled", err)
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if msg, ok := authMessages[rerr.ErrorCode]; ok {
			return &service.Failure{Kind: service.KindAuth, Message: msg, Err: err}
		}
		if rerr.Response != nil && rerr.Response.StatusCode >= 400 && rerr.Response.StatusCode < 500 {
			return &service.Failure{Kind: service.KindAuth, Message: msgSessionExpired, Err: err}
		}
		return service.NetworkFailure("token refresh failed", err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if msg, ok := authMessages[authCode(gerr.Message)]; ok {
			return &service.Failure{Kind: service.KindAuth, Message: msg, Err: err}
		}
		switch {
		case gerr.Code == http.StatusUnauthorized:
			return &service.Failure{Kind: service.KindAuth, Message: msgSessionExpired, Err: err}
		case gerr.Code == http.StatusForbidden:
			return &service.Failure{Kind: service.KindAuth, Message: "permission denied", Err: err}
		case gerr.Code == http.StatusNotFound:
			return &service.Failure{Kind: service.KindNotFound, Message: "not found", Err: err}
		case gerr.Code == http.StatusBadRequest:
			return &service.Failure{Kind: service.KindInvalid, Message: "request rejected by server", Err: err}
		case gerr.Code == http.StatusConflict:
			return service.NetworkFailure("request conflicted, try again", err)
		case gerr.Code == http.StatusTooManyRequests:
			return service.NetworkFailure("rate limited, try again later", err)
		default:
			return service.NetworkFailure("server error", err)
		}
	}

	return service.NetworkFailure("network unavailable", err)
}

// isAborted reports a transaction conflict that may be retried.
func isAborted(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}
