// ABOUTME: Lock-guarded set of connected listener sinks
// ABOUTME: Register and deregister are safe against a concurrent broadcast
package station

import (
	"sync"

	"github.com/google/uuid"

	"github.com/harper/folder-radio/internal/domain"
)

// Listener is the handle returned by Register. Done is closed once the
// listener has been removed, whether by Deregister or a failed write.
type Listener struct {
	ID   string
	sink domain.Sink
	done chan struct{}
}

func (l *Listener) Done() <-chan struct{} {
	return l.done
}

type Registry struct {
	mu        sync.Mutex
	listeners map[string]*Listener
	onChange  func(n int)
}

func NewRegistry() *Registry {
	return &Registry{listeners: make(map[string]*Listener)}
}

// Register adds sink to the set. Callers must have written the response
// headers before registering; the next broadcast may write to it.
func (r *Registry) Register(sink domain.Sink) *Listener {
	l := &Listener{
		ID:   uuid.NewString(),
		sink: sink,
		done: make(chan struct{}),
	}

	r.mu.Lock()
	r.listeners[l.ID] = l
	n := len(r.listeners)
	r.mu.Unlock()

	r.notify(n)
	return l
}

// Deregister removes the listener with id. Unknown ids are ignored. Once it
// returns, no broadcast will write to the listener's sink again.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	removed := r.removeLocked(id)
	n := len(r.listeners)
	r.mu.Unlock()

	if removed {
		r.notify(n)
	}
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// removeLocked requires r.mu.
func (r *Registry) removeLocked(id string) bool {
	l, ok := r.listeners[id]
	if !ok {
		return false
	}
	delete(r.listeners, id)
	close(l.done)
	return true
}

func (r *Registry) notify(n int) {
	if r.onChange != nil {
		r.onChange(n)
	}
}

// closeAll drops every listener, releasing anyone waiting on Done.
func (r *Registry) closeAll() {
	r.mu.Lock()
	for id := range r.listeners {
		r.removeLocked(id)
	}
	r.mu.Unlock()

	r.notify(0)
}
