package service

import "errors"

// Kind classifies a failure. The set is closed; backends map their own
// error codes onto it so callers never see backend-specific messages.
type Kind int

const (
	// KindNetwork covers transport errors, timeouts and unclassified
	// service errors.
	KindNetwork Kind = iota
	// KindAuth covers bad credentials, account conflicts and task
	// operations without a session.
	KindAuth
	// KindNotFound is returned when the addressed task does not exist.
	KindNotFound
	// KindInvalid is a local validation failure; no request was made.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	default:
		return "network"
	}
}

// Failure is the error type returned across the adapter boundary.
type Failure struct {
	Kind    Kind
	Message string
	Err     error // underlying cause, for logs only
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Err }

// AuthFailure returns a KindAuth failure.
func AuthFailure(msg string) *Failure { return &Failure{Kind: KindAuth, Message: msg} }

// NetworkFailure returns a KindNetwork failure wrapping cause.
func NetworkFailure(msg string, cause error) *Failure {
	return &Failure{Kind: KindNetwork, Message: msg, Err: cause}
}

// NotFoundFailure returns a KindNotFound failure.
func NotFoundFailure(msg string) *Failure { return &Failure{Kind: KindNotFound, Message: msg} }

// InvalidFailure returns a KindInvalid failure.
func InvalidFailure(msg string) *Failure { return &Failure{Kind: KindInvalid, Message: msg} }

// ErrNoSession is returned by task operations attempted without a session.
var ErrNoSession = AuthFailure("not signed in")

// KindOf returns the kind of err. Errors that are not a *Failure are
// reported as KindNetwork.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindNetwork
}

// IsKind reports whether err is a failure of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
