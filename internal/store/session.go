package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tasksync/internal/logging"
	"tasksync/internal/service"
)

// Status is the authentication status of a SessionStore.
type Status int

const (
	Unauthenticated Status = iota
	Authenticating
	Authenticated
	// AuthError holds the last sign-up or login failure until ClearError.
	AuthError
)

func (s Status) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case AuthError:
		return "auth_error"
	default:
		return "unauthenticated"
	}
}

// SessionState is a snapshot of a SessionStore.
type SessionState struct {
	Status  Status
	Session *service.Session // set only when Authenticated
	Err     error            // set only in AuthError
}

// SessionStore owns the signed-in identity.
type SessionStore struct {
	svc service.Service
	log *zap.Logger

	// emitMu serializes transitions with their notifications so
	// subscribers observe states in transition order.
	emitMu sync.Mutex
	mu     sync.RWMutex
	state  SessionState
	subs   emitter[SessionState]
}

// NewSessionStore creates an unauthenticated store over svc.
func NewSessionStore(svc service.Service, log *zap.Logger) *SessionStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionStore{svc: svc, log: log.Named("session")}
}

// State returns the current snapshot.
func (s *SessionStore) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// Current returns the active session, or nil.
func (s *SessionStore) Current() *service.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Session == nil {
		return nil
	}
	sess := *s.state.Session
	return &sess
}

// Subscribe registers handler for every transition.
// Handlers run synchronously on the goroutine that caused the transition
// and must not call intent methods of this store; start a goroutine instead.
func (s *SessionStore) Subscribe(handler func(SessionState)) (cancel func()) {
	return s.subs.subscribe(handler)
}

// SignUp creates an account and signs it in.
func (s *SessionStore) SignUp(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, "sign_up", func(ctx context.Context) (service.Session, error) {
		return s.svc.SignUp(ctx, email, password)
	})
}

// LogIn signs in an existing account.
func (s *SessionStore) LogIn(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, "log_in", func(ctx context.Context) (service.Session, error) {
		return s.svc.LogIn(ctx, email, password)
	})
}

func (s *SessionStore) authenticate(ctx context.Context, op string, call func(context.Context) (service.Session, error)) error {
	log := s.log.With(logging.Op(op, uuid.NewString())...)

	s.transition(func(st *SessionState) {
		*st = SessionState{Status: Authenticating}
	})

	sess, err := call(ctx)
	if err != nil {
		log.Warn("authentication failed", zap.Error(err))
		s.transition(func(st *SessionState) {
			*st = SessionState{Status: AuthError, Err: err}
		})
		return err
	}

	log.Debug("authenticated", zap.String("uid", sess.UID))
	s.transition(func(st *SessionState) {
		*st = SessionState{Status: Authenticated, Session: &sess}
	})
	return nil
}

// LogOut signs out. It does nothing unless Authenticated. A remote
// failure is logged and the store still becomes Unauthenticated.
func (s *SessionStore) LogOut(ctx context.Context) {
	if s.State().Status != Authenticated {
		return
	}
	log := s.log.With(logging.Op("log_out", uuid.NewString())...)
	if err := s.svc.LogOut(ctx); err != nil {
		log.Warn("remote logout failed", zap.Error(err))
	}
	s.transition(func(st *SessionState) {
		*st = SessionState{Status: Unauthenticated}
	})
}

// ClearError acknowledges an AuthError and returns to Unauthenticated.
func (s *SessionStore) ClearError() {
	s.transition(func(st *SessionState) {
		if st.Status == AuthError {
			*st = SessionState{Status: Unauthenticated}
		}
	})
}

// ApplyPresence applies an external session-presence signal. The latest
// signal wins over any earlier login, logout or presence transition.
func (s *SessionStore) ApplyPresence(sess *service.Session) {
	s.transition(func(st *SessionState) {
		if sess == nil {
			*st = SessionState{Status: Unauthenticated}
			return
		}
		cp := *sess
		*st = SessionState{Status: Authenticated, Session: &cp}
	})
}

// Restore asks the adapter for a remembered session and applies it as
// presence. On failure the state is left unchanged.
func (s *SessionStore) Restore(ctx context.Context) error {
	sess, err := s.svc.RestoreSession(ctx)
	if err != nil {
		s.log.Warn("session restore failed", zap.Error(err))
		return err
	}
	s.ApplyPresence(sess)
	return nil
}

func (s *SessionStore) transition(fn func(*SessionState)) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	prev := s.state.Status
	fn(&s.state)
	snap := s.snapshot()
	s.mu.Unlock()

	if prev != snap.Status {
		s.log.Debug("transition", zap.Stringer("from", prev), zap.Stringer("to", snap.Status))
	}
	s.subs.emit(snap)
}

// snapshot must be called with mu held.
func (s *SessionStore) snapshot() SessionState {
	snap := s.state
	if snap.Session != nil {
		sess := *snap.Session
		snap.Session = &sess
	}
	return snap
}
