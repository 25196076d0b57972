package app

import (
	"strings"
	"sync"
	"time"
)

// Registry keeps per-client workspaces keyed by client id and session id.
type Registry[T any] struct {
	mu    sync.Mutex
	items map[string]*registryEntry[T]
}

type registryEntry[T any] struct {
	value    T
	lastUsed time.Time
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[string]*registryEntry[T])}
}

func WorkspaceKey(clientID, sessionID string) string {
	return clientID + "/" + sessionID
}

// GetOrCreate returns the value under key, creating it with create when absent.
// The second result reports whether it was created.
func (r *Registry[T]) GetOrCreate(key string, create func() T) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.items[key]; ok {
		e.lastUsed = time.Now()
		return e.value, false
	}
	v := create()
	r.items[key] = &registryEntry[T]{value: v, lastUsed: time.Now()}
	return v, true
}

func (r *Registry[T]) Get(key string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[key]
	if !ok {
		var zero T
		return zero, false
	}
	e.lastUsed = time.Now()
	return e.value, true
}

func (r *Registry[T]) Drop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, key)
}

// DropClient forgets every workspace of one client, as on logout.
func (r *Registry[T]) DropClient(clientID string) int {
	prefix := clientID + "/"
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.items {
		if strings.HasPrefix(k, prefix) {
			delete(r.items, k)
			n++
		}
	}
	return n
}

func (r *Registry[T]) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, e := range r.items {
		if e.lastUsed.Before(cutoff) {
			delete(r.items, k)
			n++
		}
	}
	return n
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
