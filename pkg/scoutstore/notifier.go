package scoutstore

import (
	"sync"

	"github.com/google/uuid"
)

// Notifier receives the logical key of every record that was just hydrated
// from the durable tier into the fast tier.
type Notifier interface {
	Notify(key string)
}

// MultiNotifier fans each notification out to several notifiers, e.g. a
// local ListenerSet plus a Pub/Sub broadcast.
type MultiNotifier []Notifier

// Notify delivers key to every wrapped notifier.
func (m MultiNotifier) Notify(key string) {
	for _, n := range m {
		n.Notify(key)
	}
}

// NopNotifier is a Notifier that discards every notification.
type NopNotifier struct{}

// Notify discards the notification.
func (NopNotifier) Notify(string) {}

// ListenerSet is an in-process Notifier that fans each hydration key out to a
// dynamic set of listeners. Listeners are invoked synchronously in
// unspecified order; subscription state is just the listener list.
type ListenerSet struct {
	mu        sync.RWMutex
	listeners map[string]func(key string)
}

// NewListenerSet creates an empty ListenerSet.
func NewListenerSet() *ListenerSet {
	return &ListenerSet{
		listeners: make(map[string]func(key string)),
	}
}

// Subscribe registers a listener for hydration keys and returns an opaque
// handle for Unsubscribe.
func (l *ListenerSet) Subscribe(fn func(key string)) string {
	id := uuid.NewString()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners[id] = fn
	return id
}

// Unsubscribe removes the listener registered under id. Unknown ids are ignored.
func (l *ListenerSet) Unsubscribe(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.listeners, id)
}

// Notify delivers key to every registered listener.
func (l *ListenerSet) Notify(key string) {
	l.mu.RLock()
	fns := make([]func(string), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		fn(key)
	}
}
