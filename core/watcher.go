// Package core implements the tools shared by the components of the node.
package core

import (
	"context"
	"sync"
)

// Observer is the interface to implement to watch events.
type Observer interface {
	NotifyCallback(event interface{})
}

// Observable provides primitives to add and remove observers and to notify
// them of new events.
type Observable interface {
	// Add adds the observer to the list of observers that will be notified of
	// new events.
	Add(observer Observer)

	// Remove removes the observer from the list thus stopping it from receiving
	// new events.
	Remove(observer Observer)

	// Notify notifies the observers of a new event.
	Notify(event interface{})
}

// Watcher is an implementation of the Observable interface.
//
// - implements core.Observable
type Watcher struct {
	sync.RWMutex

	observers map[Observer]struct{}
}

// NewWatcher creates a new empty watcher.
func NewWatcher() *Watcher {
	return &Watcher{
		observers: make(map[Observer]struct{}),
	}
}

// Len returns the number of observers.
func (w *Watcher) Len() int {
	w.RLock()
	defer w.RUnlock()

	return len(w.observers)
}

// Add implements core.Observable.
func (w *Watcher) Add(observer Observer) {
	w.Lock()
	w.observers[observer] = struct{}{}
	w.Unlock()
}

// Remove implements core.Observable.
func (w *Watcher) Remove(observer Observer) {
	w.Lock()
	delete(w.observers, observer)
	w.Unlock()
}

// Notify implements core.Observable. It notifies the observers one after the
// other.
func (w *Watcher) Notify(event interface{}) {
	w.RLock()
	defer w.RUnlock()

	for obs := range w.observers {
		obs.NotifyCallback(event)
	}
}

// Watch registers an observer that forwards the events to the channel until the
// context is done, then closes the channel. An event is dropped when the
// channel is full so that a slow reader never blocks the notifier.
func Watch(ctx context.Context, obs Observable, size int) <-chan interface{} {
	ch := &chanObserver{
		ch: make(chan interface{}, size),
	}

	obs.Add(ch)

	go func() {
		<-ctx.Done()
		obs.Remove(ch)

		ch.Lock()
		ch.closed = true
		close(ch.ch)
		ch.Unlock()
	}()

	return ch.ch
}

// chanObserver is an observer that forwards the events to a channel.
//
// - implements core.Observer
type chanObserver struct {
	sync.Mutex

	ch     chan interface{}
	closed bool
}

func (o *chanObserver) NotifyCallback(event interface{}) {
	o.Lock()
	defer o.Unlock()

	if o.closed {
		return
	}

	select {
	case o.ch <- event:
	default:
	}
}
