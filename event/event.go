package event

import "sync"

// Subscription is a handle for a single registered listener.
type Subscription struct {
	once    sync.Once
	dispose func()
}

// Dispose removes the listener. It is safe to call more than once and on a nil
// Subscription.
func (s *Subscription) Dispose() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.dispose != nil {
			s.dispose()
		}
	})
}

type listener[T any] struct {
	id   uint64
	fn   func(T)
	once bool
}

// Emitter is a list of listeners for values of type T. The zero value is ready
// to use.
type Emitter[T any] struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []listener[T]
}

// On registers fn for every emitted value.
func (e *Emitter[T]) On(fn func(T)) *Subscription {
	return e.add(fn, false)
}

// Once registers fn for the next emitted value only.
func (e *Emitter[T]) Once(fn func(T)) *Subscription {
	return e.add(fn, true)
}

func (e *Emitter[T]) add(fn func(T), once bool) *Subscription {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listener[T]{id: id, fn: fn, once: once})
	e.mu.Unlock()

	return &Subscription{dispose: func() { e.remove(id) }}
}

func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Emit calls the registered listeners in registration order and returns how
// many were called. Listeners run outside the emitter lock, so they may
// subscribe, dispose or emit again.
func (e *Emitter[T]) Emit(v T) int {
	e.mu.Lock()
	if len(e.listeners) == 0 {
		e.mu.Unlock()
		return 0
	}

	snapshot := make([]listener[T], len(e.listeners))
	copy(snapshot, e.listeners)

	kept := e.listeners[:0]
	for _, l := range e.listeners {
		if !l.once {
			kept = append(kept, l)
		}
	}
	// Zero the tail so dropped closures can be collected.
	for i := len(kept); i < len(e.listeners); i++ {
		e.listeners[i] = listener[T]{}
	}
	e.listeners = kept
	e.mu.Unlock()

	for _, l := range snapshot {
		l.fn(v)
	}
	return len(snapshot)
}

// Len reports the number of registered listeners.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Group disposes a set of subscriptions together. The zero value is ready to
// use.
type Group struct {
	mu       sync.Mutex
	subs     []*Subscription
	disposed bool
}

// Add tracks subs. Subscriptions added after the group was disposed are
// disposed immediately.
func (g *Group) Add(subs ...*Subscription) {
	g.mu.Lock()
	if !g.disposed {
		g.subs = append(g.subs, subs...)
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	for _, s := range subs {
		s.Dispose()
	}
}

// Dispose disposes every tracked subscription. It reports true only for the
// call that actually performed the teardown.
func (g *Group) Dispose() bool {
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return false
	}
	g.disposed = true
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()

	for _, s := range subs {
		s.Dispose()
	}
	return true
}

// Disposed reports whether Dispose has run.
func (g *Group) Disposed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.disposed
}
