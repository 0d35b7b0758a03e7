package visitor

import (
	"context"
	"sync"
	"time"
)

// Registry keeps one T per visitor and evicts entries idle longer than the
// TTL. create runs under the registry lock and must not block; release runs
// outside it.
type Registry[T any] struct {
	ttl     time.Duration
	create  func(id string) T
	release func(T)
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry[T]
}

type entry[T any] struct {
	value    T
	lastSeen time.Time
}

// NewRegistry builds a registry. release may be nil.
func NewRegistry[T any](ttl time.Duration, create func(id string) T, release func(T)) *Registry[T] {
	return &Registry[T]{
		ttl:     ttl,
		create:  create,
		release: release,
		now:     time.Now,
		entries: make(map[string]*entry[T]),
	}
}

// Get returns the visitor's value, creating it on first use.
func (r *Registry[T]) Get(id string) T {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		e = &entry[T]{value: r.create(id)}
		r.entries[id] = e
	}
	e.lastSeen = r.now()
	return e.value
}

// Len reports how many visitors are tracked.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep evicts idle visitors and returns how many were removed.
func (r *Registry[T]) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	var evicted []T
	r.mu.Lock()
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			evicted = append(evicted, e.value)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()
	r.releaseAll(evicted)
	return len(evicted)
}

// Run sweeps every interval until ctx is done, then releases everything.
func (r *Registry[T]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close releases every entry.
func (r *Registry[T]) Close() {
	r.mu.Lock()
	all := make([]T, 0, len(r.entries))
	for id, e := range r.entries {
		all = append(all, e.value)
		delete(r.entries, id)
	}
	r.mu.Unlock()
	r.releaseAll(all)
}

func (r *Registry[T]) releaseAll(vals []T) {
	if r.release == nil {
		return
	}
	for _, v := range vals {
		r.release(v)
	}
}
