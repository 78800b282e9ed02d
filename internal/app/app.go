// Package app wires the session, task and form stores around one Service.
package app

import (
	"go.uber.org/zap"

	"tasksync/internal/service"
	"tasksync/internal/store"
)

// App is the state layer a view drives.
type App struct {
	Service service.Service
	Session *store.SessionStore
	Tasks   *store.TaskStore
	Form    *store.FormStore

	unbind []func()
}

// New creates the stores for svc. The task store and the form follow the
// session store: both are reset when the signed-in account changes.
func New(svc service.Service, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	session := store.NewSessionStore(svc, log)
	tasks := store.NewTaskStore(svc, session, log)
	form := store.NewFormStore(session, log)

	a := &App{
		Service: svc,
		Session: session,
		Tasks:   tasks,
		Form:    form,
	}
	a.unbind = append(a.unbind, tasks.BindSession(session), form.BindSession(session))
	return a
}

// Close detaches the stores from each other.
func (a *App) Close() {
	for _, cancel := range a.unbind {
		cancel()
	}
	a.unbind = nil
}
