package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"tasksync/internal/service"
)

// ErrPasswordMismatch is returned by SubmitSignUp when the confirmation
// does not match. No request is made.
var ErrPasswordMismatch = service.InvalidFailure("passwords don't match")

// FormState is the uncommitted input of the sign-up and login forms.
type FormState struct {
	Email           string
	Password        string
	ConfirmPassword string
	Loading         bool
}

// FieldUpdate changes one form field. Values are built with SetEmail,
// SetPassword and SetConfirmPassword.
type FieldUpdate interface {
	apply(*FormState)
}

type emailUpdate string

func (v emailUpdate) apply(f *FormState) { f.Email = string(v) }

type passwordUpdate string

func (v passwordUpdate) apply(f *FormState) { f.Password = string(v) }

type confirmUpdate string

func (v confirmUpdate) apply(f *FormState) { f.ConfirmPassword = string(v) }

// SetEmail updates the email field.
func SetEmail(v string) FieldUpdate { return emailUpdate(v) }

// SetPassword updates the password field.
func SetPassword(v string) FieldUpdate { return passwordUpdate(v) }

// SetConfirmPassword updates the confirm-password field.
func SetConfirmPassword(v string) FieldUpdate { return confirmUpdate(v) }

// FormStore holds auth form input until it is submitted to a SessionStore.
type FormStore struct {
	session *SessionStore
	log     *zap.Logger

	emitMu sync.Mutex
	mu     sync.RWMutex
	state  FormState
	subs   emitter[FormState]
}

// NewFormStore creates an empty form that submits to session.
func NewFormStore(session *SessionStore, log *zap.Logger) *FormStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FormStore{session: session, log: log.Named("form")}
}

// State returns the current snapshot.
func (f *FormStore) State() FormState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Subscribe registers handler for every transition.
func (f *FormStore) Subscribe(handler func(FormState)) (cancel func()) {
	return f.subs.subscribe(handler)
}

// Update applies a field update.
func (f *FormStore) Update(u FieldUpdate) {
	f.transition(u.apply)
}

// Reset clears the input fields.
func (f *FormStore) Reset() {
	f.transition(clearFields)
}

// SubmitSignUp validates the form locally and signs up. The fields are
// cleared on success.
func (f *FormStore) SubmitSignUp(ctx context.Context) error {
	st := f.State()
	if st.Password != st.ConfirmPassword {
		f.log.Debug("sign-up rejected locally", zap.Error(ErrPasswordMismatch))
		return ErrPasswordMismatch
	}
	return f.submit(ctx, func(ctx context.Context) error {
		return f.session.SignUp(ctx, st.Email, st.Password)
	})
}

// SubmitLogIn logs in with the form's credentials. The fields are cleared
// on success.
func (f *FormStore) SubmitLogIn(ctx context.Context) error {
	st := f.State()
	return f.submit(ctx, func(ctx context.Context) error {
		return f.session.LogIn(ctx, st.Email, st.Password)
	})
}

func (f *FormStore) submit(ctx context.Context, call func(context.Context) error) error {
	f.transition(func(st *FormState) { st.Loading = true })
	err := call(ctx)
	f.transition(func(st *FormState) {
		st.Loading = false
		if err == nil {
			clearFields(st)
		}
	})
	return err
}

// BindSession clears the form when the session logs out.
func (f *FormStore) BindSession(session *SessionStore) (cancel func()) {
	var mu sync.Mutex
	prev := session.State().Status
	return session.Subscribe(func(st SessionState) {
		mu.Lock()
		loggedOut := prev == Authenticated && st.Status == Unauthenticated
		prev = st.Status
		mu.Unlock()
		if loggedOut {
			f.Reset()
		}
	})
}

func (f *FormStore) transition(fn func(*FormState)) {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()

	f.mu.Lock()
	fn(&f.state)
	snap := f.state
	f.mu.Unlock()

	f.subs.emit(snap)
}

func clearFields(st *FormState) {
	st.Email = ""
	st.Password = ""
	st.ConfirmPassword = ""
}
