// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tasksync/internal/service"
)

// BaseTime is the creation time of the first task created by a FakeService.
var BaseTime = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

type fakeUser struct {
	uid      string
	password string
}

// FakeService is an in-memory implementation of service.Service for testing.
// IDs are sequential: users u1, u2, ... and tasks t1, t2, ...
type FakeService struct {
	mu         sync.Mutex
	users      map[string]fakeUser       // email -> user
	tasks      map[string][]service.Task // uid -> tasks in insertion order
	remembered *service.Session
	nextUser   int
	nextTask   int
	calls      map[string]int

	// Before, if set, runs before each operation with the operation name
	// and its key (email or task ID). Tests use it to hold requests in flight.
	Before func(op, key string)

	// Error injection for testing
	SignUpErr  error
	LogInErr   error
	LogOutErr  error
	RestoreErr error
	FetchErr   error
	AddErr     error
	ToggleErr  error
	DeleteErr  error
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{
		users: make(map[string]fakeUser),
		tasks: make(map[string][]service.Task),
		calls: make(map[string]int),
	}
}

// AddUser registers an account and returns its UID.
func (f *FakeService) AddUser(email, password string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addUserLocked(email, password)
}

func (f *FakeService) addUserLocked(email, password string) string {
	f.nextUser++
	uid := fmt.Sprintf("u%d", f.nextUser)
	f.users[strings.ToLower(email)] = fakeUser{uid: uid, password: password}
	return uid
}

// SeedTask stores a task for uid as if it had been created remotely.
// An empty ID is assigned the next sequential ID.
func (f *FakeService) SeedTask(uid string, task service.Task) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task.ID == "" {
		task.ID = f.newTaskIDLocked()
	}
	if task.Priority == "" {
		task.Priority = service.PriorityMedium
	}
	f.tasks[uid] = append(f.tasks[uid], task)
	return task
}

// Remember makes RestoreSession return sess.
func (f *FakeService) Remember(sess *service.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remembered = sess
}

// Tasks returns the stored tasks of uid in insertion order.
func (f *FakeService) Tasks(uid string) []service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]service.Task, len(f.tasks[uid]))
	copy(out, f.tasks[uid])
	return out
}

// Calls returns how often op was invoked.
func (f *FakeService) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakeService) enter(op, key string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
	if f.Before != nil {
		f.Before(op, key)
	}
}

func (f *FakeService) newTaskIDLocked() string {
	f.nextTask++
	return fmt.Sprintf("t%d", f.nextTask)
}

// SignUp implements service.Service.
func (f *FakeService) SignUp(ctx context.Context, email, password string) (service.Session, error) {
	f.enter("SignUp", email)
	if f.SignUpErr != nil {
		return service.Session{}, f.SignUpErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if !strings.Contains(email, "@") {
		return service.Session{}, service.AuthFailure("invalid email address")
	}
	if _, exists := f.users[strings.ToLower(email)]; exists {
		return service.Session{}, service.AuthFailure("email already in use")
	}
	if len(password) < 6 {
		return service.Session{}, service.AuthFailure("password should be at least 6 characters")
	}
	sess := service.Session{UID: f.addUserLocked(email, password), Email: email}
	f.remembered = &sess
	return sess, nil
}

// LogIn implements service.Service.
func (f *FakeService) LogIn(ctx context.Context, email, password string) (service.Session, error) {
	f.enter("LogIn", email)
	if f.LogInErr != nil {
		return service.Session{}, f.LogInErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[strings.ToLower(email)]
	if !ok || u.password != password {
		return service.Session{}, service.AuthFailure("invalid email or password")
	}
	sess := service.Session{UID: u.uid, Email: email}
	f.remembered = &sess
	return sess, nil
}

// LogOut implements service.Service.
func (f *FakeService) LogOut(ctx context.Context) error {
	f.enter("LogOut", "")
	f.mu.Lock()
	f.remembered = nil
	f.mu.Unlock()
	return f.LogOutErr
}

// RestoreSession implements service.Service.
func (f *FakeService) RestoreSession(ctx context.Context) (*service.Session, error) {
	f.enter("RestoreSession", "")
	if f.RestoreErr != nil {
		return nil, f.RestoreErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remembered == nil {
		return nil, nil
	}
	sess := *f.remembered
	return &sess, nil
}

// FetchTasks implements service.Service. Tasks are ordered by date
// descending using string comparison, ties by ID.
func (f *FakeService) FetchTasks(ctx context.Context, sess service.Session) ([]service.Task, error) {
	f.enter("FetchTasks", sess.UID)
	if sess.UID == "" {
		return nil, service.ErrNoSession
	}
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]service.Task, len(f.tasks[sess.UID]))
	copy(out, f.tasks[sess.UID])
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AddTask implements service.Service.
func (f *FakeService) AddTask(ctx context.Context, sess service.Session, draft service.Draft) (service.Task, error) {
	f.enter("AddTask", draft.Title)
	if sess.UID == "" {
		return service.Task{}, service.ErrNoSession
	}
	if f.AddErr != nil {
		return service.Task{}, f.AddErr
	}
	if err := draft.Validate(); err != nil {
		return service.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.newTaskIDLocked()
	task := draft.Task(id, BaseTime.Add(time.Duration(f.nextTask)*time.Second))
	f.tasks[sess.UID] = append(f.tasks[sess.UID], task)
	return task, nil
}

// ToggleTask implements service.Service.
func (f *FakeService) ToggleTask(ctx context.Context, sess service.Session, taskID string) (bool, error) {
	f.enter("ToggleTask", taskID)
	if sess.UID == "" {
		return false, service.ErrNoSession
	}
	if f.ToggleErr != nil {
		return false, f.ToggleErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, t := range f.tasks[sess.UID] {
		if t.ID == taskID {
			f.tasks[sess.UID][i].Completed = !t.Completed
			return !t.Completed, nil
		}
	}
	return false, service.NotFoundFailure("task not found")
}

// DeleteTask implements service.Service.
func (f *FakeService) DeleteTask(ctx context.Context, sess service.Session, taskID string) error {
	f.enter("DeleteTask", taskID)
	if sess.UID == "" {
		return service.ErrNoSession
	}
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	tasks := f.tasks[sess.UID]
	for i, t := range tasks {
		if t.ID == taskID {
			f.tasks[sess.UID] = append(tasks[:i], tasks[i+1:]...)
			return nil
		}
	}
	return service.NotFoundFailure("task not found")
}

var _ service.Service = (*FakeService)(nil)
