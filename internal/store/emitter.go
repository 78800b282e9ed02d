// Package store holds the client-side state: the signed-in session, the
// task list of that session and the legacy auth form. Stores are mutated
// only by their own intent methods and by adapter results, and notify
// subscribers with a snapshot after every transition.
package store

import (
	"slices"
	"sync"
)

// emitter fans state snapshots out to subscribers.
type emitter[S any] struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]func(S)
}

func (e *emitter[S]) subscribe(handler func(S)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[int]func(S))
	}
	id := e.nextID
	e.nextID++
	e.handlers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.handlers, id)
		})
	}
}

// emit calls every handler with state. Handlers are copied under the lock
// and called after it is released so a handler may unsubscribe.
func (e *emitter[S]) emit(state S) {
	e.mu.RLock()
	ids := make([]int, 0, len(e.handlers))
	for id := range e.handlers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]func(S), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, e.handlers[id])
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(state)
	}
}
