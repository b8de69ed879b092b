// Package bus provides the synchronous, name-keyed message bus that gates
// queued sequence statements and announces command completion.
//
// Message names are global strings. Callers that play several sequences at
// once should namespace them ("door.opened", "intro.camera.done") to keep
// one sequence from releasing another's waits.
package bus

import (
	"strings"
	"sync"
)

// Listener receives every message sent on a bus.
type Listener interface {
	OnMessage(name string)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(name string)

// OnMessage calls f(name).
func (f ListenerFunc) OnMessage(name string) { f(name) }

type subscription struct {
	id       uint64
	listener Listener
}

// Bus is a synchronous multicast dispatcher. Send delivers to listeners in
// registration order on the caller's goroutine.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners []subscription
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

var defaultBus = New()

// Default returns the process-wide bus.
func Default() *Bus {
	return defaultBus
}

// Message sends name on the process-wide bus.
func Message(name string) {
	defaultBus.Send(name)
}

// Subscribe registers a listener and returns a function that removes it.
// The returned function is idempotent.
func (b *Bus) Subscribe(listener Listener) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, subscription{id: id, listener: listener})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.listeners {
		if sub.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Send delivers name to every listener registered at the time of the call.
// Listeners may send or (un)subscribe reentrantly. Blank names are dropped.
func (b *Bus) Send(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}

	b.mu.RLock()
	snapshot := make([]subscription, len(b.listeners))
	copy(snapshot, b.listeners)
	b.mu.RUnlock()

	for _, sub := range snapshot {
		sub.listener.OnMessage(name)
	}
}

// Len returns the number of listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
