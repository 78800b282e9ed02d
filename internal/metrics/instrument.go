package metrics

import (
	"context"
	"time"

	"tasksync/internal/service"
)

// instrumented records every call of the wrapped Service.
type instrumented struct {
	next service.Service
	rec  Recorder
	now  func() time.Time
}

// Instrument wraps svc so that each call is reported to rec.
func Instrument(svc service.Service, rec Recorder) service.Service {
	return &instrumented{next: svc, rec: rec, now: time.Now}
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	s.rec.RecordCall(op, err, s.now().Sub(start))
}

func (s *instrumented) SignUp(ctx context.Context, email, password string) (sess service.Session, err error) {
	defer func(start time.Time) { s.observe("sign_up", start, err) }(s.now())
	return s.next.SignUp(ctx, email, password)
}

func (s *instrumented) LogIn(ctx context.Context, email, password string) (sess service.Session, err error) {
	defer func(start time.Time) { s.observe("log_in", start, err) }(s.now())
	return s.next.LogIn(ctx, email, password)
}

func (s *instrumented) LogOut(ctx context.Context) (err error) {
	defer func(start time.Time) { s.observe("log_out", start, err) }(s.now())
	return s.next.LogOut(ctx)
}

func (s *instrumented) RestoreSession(ctx context.Context) (sess *service.Session, err error) {
	defer func(start time.Time) { s.observe("restore_session", start, err) }(s.now())
	return s.next.RestoreSession(ctx)
}

func (s *instrumented) FetchTasks(ctx context.Context, sess service.Session) (tasks []service.Task, err error) {
	defer func(start time.Time) { s.observe("fetch_tasks", start, err) }(s.now())
	return s.next.FetchTasks(ctx, sess)
}

func (s *instrumented) AddTask(ctx context.Context, sess service.Session, draft service.Draft) (task service.Task, err error) {
	defer func(start time.Time) { s.observe("add_task", start, err) }(s.now())
	return s.next.AddTask(ctx, sess, draft)
}

func (s *instrumented) ToggleTask(ctx context.Context, sess service.Session, taskID string) (completed bool, err error) {
	defer func(start time.Time) { s.observe("toggle_task", start, err) }(s.now())
	return s.next.ToggleTask(ctx, sess, taskID)
}

func (s *instrumented) DeleteTask(ctx context.Context, sess service.Session, taskID string) (err error) {
	defer func(start time.Time) { s.observe("delete_task", start, err) }(s.now())
	return s.next.DeleteTask(ctx, sess, taskID)
}
