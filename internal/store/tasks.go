package store

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tasksync/internal/logging"
	"tasksync/internal/service"
)

// SessionSource supplies the session that scopes task operations.
type SessionSource interface {
	Current() *service.Session
}

// TaskState is a snapshot of a TaskStore.
type TaskState struct {
	Tasks   []service.Task // server order from the last fetch, new tasks in front
	Loading bool           // a fetch is in flight
	Err     error          // last failure, kept until ClearError
}

// TaskStore holds the task collection of the active session.
//
// Writes are applied only after the server confirms them; no placeholder
// entries are shown while a request is in flight.
type TaskStore struct {
	svc      service.Service
	sessions SessionSource
	log      *zap.Logger

	emitMu sync.Mutex
	mu     sync.RWMutex
	state  TaskState
	owner  string // UID the state belongs to
	seq    uint64 // id of the most recently issued fetch
	subs   emitter[TaskState]
}

// NewTaskStore creates an empty store. Every operation is scoped to
// sessions.Current() at the time it is issued.
func NewTaskStore(svc service.Service, sessions SessionSource, log *zap.Logger) *TaskStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskStore{svc: svc, sessions: sessions, log: log.Named("tasks")}
}

// State returns the current snapshot.
func (s *TaskStore) State() TaskState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// Subscribe registers handler for every transition.
// Handlers run synchronously and must not call intent methods of this store.
func (s *TaskStore) Subscribe(handler func(TaskState)) (cancel func()) {
	return s.subs.subscribe(handler)
}

// BindSession scopes the store to the current session and resets it
// whenever the signed-in UID changes.
func (s *TaskStore) BindSession(sessions *SessionStore) (cancel func()) {
	uid := ""
	if cur := sessions.Current(); cur != nil {
		uid = cur.UID
	}
	s.transition(func(*TaskState) bool { return s.scope(uid) })
	return sessions.Subscribe(func(st SessionState) {
		uid := ""
		if st.Session != nil {
			uid = st.Session.UID
		}
		s.transition(func(*TaskState) bool { return s.scope(uid) })
	})
}

// Fetch replaces the task list with the server's.
func (s *TaskStore) Fetch(ctx context.Context) error {
	sess, err := s.begin()
	if err != nil {
		return err
	}
	log := s.log.With(logging.Op("fetch_tasks", uuid.NewString())...)

	var seq uint64
	s.transition(func(st *TaskState) bool {
		s.scope(sess.UID)
		s.seq++
		seq = s.seq
		st.Loading = true
		return true
	})

	tasks, err := s.svc.FetchTasks(ctx, sess)

	s.transition(func(st *TaskState) bool {
		if s.owner != sess.UID || seq != s.seq {
			log.Debug("discarding stale fetch")
			return false
		}
		st.Loading = false
		if err != nil {
			st.Err = err
			return true
		}
		st.Tasks = dedupe(tasks)
		return true
	})
	if err != nil {
		log.Warn("fetch failed", zap.Error(err))
		return err
	}
	log.Debug("fetched", zap.Int("count", len(tasks)))
	return nil
}

// Add creates a task and inserts it at the front of the list once the
// server has assigned its ID.
func (s *TaskStore) Add(ctx context.Context, draft service.Draft) (service.Task, error) {
	sess, err := s.begin()
	if err != nil {
		return service.Task{}, err
	}
	if err := draft.Validate(); err != nil {
		s.fail(sess.UID, err)
		return service.Task{}, err
	}
	log := s.log.With(logging.Op("add_task", uuid.NewString())...)

	task, err := s.svc.AddTask(ctx, sess, draft)
	if err != nil {
		log.Warn("add failed", zap.Error(err))
		s.fail(sess.UID, err)
		return service.Task{}, err
	}

	s.transition(func(st *TaskState) bool {
		if s.owner != sess.UID || indexOf(st.Tasks, task.ID) >= 0 {
			return false
		}
		st.Tasks = slices.Insert(st.Tasks, 0, task)
		return true
	})
	log.Debug("added", zap.String("task_id", task.ID))
	return task, nil
}

// Toggle flips a task's completion flag on the server and mirrors the
// server's result locally. A task no longer in the list is left alone.
func (s *TaskStore) Toggle(ctx context.Context, id string) (bool, error) {
	sess, err := s.begin()
	if err != nil {
		return false, err
	}
	log := s.log.With(logging.Op("toggle_task", uuid.NewString())...)

	completed, err := s.svc.ToggleTask(ctx, sess, id)
	if err != nil {
		log.Warn("toggle failed", zap.String("task_id", id), zap.Error(err))
		s.fail(sess.UID, err)
		return false, err
	}

	s.transition(func(st *TaskState) bool {
		i := indexOf(st.Tasks, id)
		if s.owner != sess.UID || i < 0 {
			return false
		}
		st.Tasks[i].Completed = completed
		return true
	})
	log.Debug("toggled", zap.String("task_id", id), zap.Bool("completed", completed))
	return completed, nil
}

// Delete removes a task. Deleting a task that is already gone, locally or
// on the server, is not an error.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	sess, err := s.begin()
	if err != nil {
		return err
	}
	log := s.log.With(logging.Op("delete_task", uuid.NewString())...)

	err = s.svc.DeleteTask(ctx, sess, id)
	if err != nil && !service.IsKind(err, service.KindNotFound) {
		log.Warn("delete failed", zap.String("task_id", id), zap.Error(err))
		s.fail(sess.UID, err)
		return err
	}

	s.transition(func(st *TaskState) bool {
		i := indexOf(st.Tasks, id)
		if s.owner != sess.UID || i < 0 {
			return false
		}
		st.Tasks = slices.Delete(st.Tasks, i, i+1)
		return true
	})
	log.Debug("deleted", zap.String("task_id", id))
	return nil
}

// ClearError drops the recorded failure.
func (s *TaskStore) ClearError() {
	s.transition(func(st *TaskState) bool {
		if st.Err == nil {
			return false
		}
		st.Err = nil
		return true
	})
}

// begin resolves the session for an operation, failing fast without one.
func (s *TaskStore) begin() (service.Session, error) {
	sess := s.sessions.Current()
	if sess == nil || sess.UID == "" {
		s.transition(func(st *TaskState) bool {
			st.Err = service.ErrNoSession
			return true
		})
		return service.Session{}, service.ErrNoSession
	}
	s.transition(func(*TaskState) bool { return s.scope(sess.UID) })
	return *sess, nil
}

func (s *TaskStore) fail(uid string, err error) {
	s.transition(func(st *TaskState) bool {
		if s.owner != uid {
			return false
		}
		st.Err = err
		return true
	})
}

// scope resets the state when it belongs to another UID. It invalidates
// in-flight fetches. Must be called with mu held.
func (s *TaskStore) scope(uid string) bool {
	if s.owner == uid {
		return false
	}
	s.owner = uid
	s.seq++
	s.state = TaskState{}
	return true
}

// transition applies fn under the lock and notifies subscribers if fn
// reports a change.
func (s *TaskStore) transition(fn func(*TaskState) bool) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	changed := fn(&s.state)
	snap := s.snapshot()
	s.mu.Unlock()

	if changed {
		s.subs.emit(snap)
	}
}

// snapshot must be called with mu held.
func (s *TaskStore) snapshot() TaskState {
	snap := s.state
	snap.Tasks = slices.Clone(s.state.Tasks)
	return snap
}

func indexOf(tasks []service.Task, id string) int {
	return slices.IndexFunc(tasks, func(t service.Task) bool { return t.ID == id })
}

// dedupe keeps the first task for every ID, preserving order.
func dedupe(tasks []service.Task) []service.Task {
	seen := make(map[string]struct{}, len(tasks))
	out := make([]service.Task, 0, len(tasks))
	for _, t := range tasks {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}
