// Package registry tracks which notifications have a live timer task and is
// the only path through which those tasks are cancelled.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrDuplicate = errors.New("registry: id already registered")
	ErrNotFound  = errors.New("registry: id not registered")
)

// Handle controls one running timer task.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewHandle derives a cancelable task context from parent.
func NewHandle(parent context.Context) (*Handle, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &Handle{cancel: cancel, done: make(chan struct{})}, ctx
}

// Cancel signals the task to stop at its next suspension point. Idempotent.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed once the task goroutine has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Exited marks the task as returned. The task goroutine calls it on exit.
func (h *Handle) Exited() { h.once.Do(func() { close(h.done) }) }

// Registry maps notification ids to task handles.
// Every method holds the lock only for map manipulation.
type Registry struct {
	mu      sync.Mutex
	entries map[uint16]*Handle
}

func New() *Registry {
	return &Registry{entries: map[uint16]*Handle{}}
}

func (r *Registry) Register(id uint16, h *Handle) error {
	if h == nil {
		return errors.New("registry: nil handle")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicate, id)
	}
	r.entries[id] = h
	return nil
}

// CancelAndForget cancels and removes the entry for id.
// ErrNotFound means the task already retired itself or never existed.
func (r *Registry) CancelAndForget(id uint16) error {
	r.mu.Lock()
	h, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	h.Cancel()
	return nil
}

// Forget removes the entry for id without cancelling it, but only if it
// still belongs to h. A task retiring itself calls this; ErrNotFound means
// an explicit delete won the race.
func (r *Registry) Forget(id uint16, h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.entries[id]
	if !ok || cur != h {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	delete(r.entries, id)
	return nil
}

// CancelAll cancels every entry, clears the registry and returns the
// cancelled ids in ascending order.
func (r *Registry) CancelAll() []uint16 {
	r.mu.Lock()
	old := r.entries
	r.entries = map[uint16]*Handle{}
	r.mu.Unlock()

	ids := make([]uint16, 0, len(old))
	for id, h := range old {
		h.Cancel()
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) IDs() []uint16 {
	r.mu.Lock()
	ids := make([]uint16, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) Contains(id uint16) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}
