// Package store implements a single-owner state container. State changes only
// through Dispatch, which runs the reducer and then notifies every subscribed
// listener synchronously, in subscription order.
package store

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

var (
	// ErrNilReducer is returned by New when no reducer is given.
	ErrNilReducer   = errors.New("store: nil reducer")
	// ErrReducerPanic wraps a panic raised inside the reducer.
	ErrReducerPanic = errors.New("store: reducer panicked")
)

// Action describes a requested state transition.
type Action struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Reducer computes the next state. It must not mutate the state it is given.
type Reducer[S any] func(state S, action Action) (S, error)

// Listener is called after every successful dispatch.
type Listener func()

// Unsubscribe removes the listener it was returned for. Calling it more than
// once is a no-op.
type Unsubscribe func()

// DispatchFunc is the shape of Store.Dispatch handed to bound components.
type DispatchFunc func(Action) (Action, error)

// Observer sees every applied action together with the resulting state.
// Observers run under the store lock, in the order actions were applied and
// before any listener. They must not block and must not call back into the
// store.
type Observer[S any] func(action Action, state S)

// Option configures a Store.
type Option[S any] func(*Store[S])

// WithObserver registers an observer.
func WithObserver[S any](o Observer[S]) Option[S] {
	return func(s *Store[S]) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

type subscription struct {
	fn     Listener
	active atomic.Bool
}

// Store owns the current state and the listener set.
//
// Reduce-and-swap is serialized; notification happens outside the lock so a
// listener may dispatch, subscribe or unsubscribe. Listeners added during a
// notification pass are not visited in that pass. A listener removed during a
// pass is skipped if it has not been visited yet. Nested dispatches from a
// listener start their own pass before the outer pass finishes.
type Store[S any] struct {
	mu        sync.Mutex
	reducer   Reducer[S]
	state     S
	subs      []*subscription
	observers []Observer[S]
}

// New creates a Store with the given reducer and initial state.
func New[S any](reducer Reducer[S], initial S, opts ...Option[S]) (*Store[S], error) {
	if reducer == nil {
		return nil, ErrNilReducer
	}
	s := &Store[S]{reducer: reducer, state: initial}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetState returns the current state snapshot.
func (s *Store[S]) GetState() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies the reducer, replaces the state, runs observers, notifies
// listeners and returns the action unchanged. If the reducer fails or panics
// the state is left as it was and nobody is notified.
func (s *Store[S]) Dispatch(action Action) (Action, error) {
	s.mu.Lock()
	next, err := s.reduce(action)
	if err != nil {
		s.mu.Unlock()
		return action, fmt.Errorf("store: dispatch %q: %w", action.Type, err)
	}
	s.state = next
	for _, o := range s.observers {
		o(action, next)
	}
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		if sub.active.Load() {
			sub.fn()
		}
	}
	return action, nil
}

func (s *Store[S]) reduce(action Action) (next S, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero S
			next, err = zero, fmt.Errorf("%w: %v", ErrReducerPanic, r)
		}
	}()
	return s.reducer(s.state, action)
}

// Subscribe appends l to the listener set. The returned function removes this
// exact registration.
func (s *Store[S]) Subscribe(l Listener) Unsubscribe {
	if l == nil {
		panic("store: nil listener")
	}
	sub := &subscription{fn: l}
	sub.active.Store(true)

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(sub) })
	}
}

func (s *Store[S]) remove(sub *subscription) {
	sub.active.Store(false)
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.subs, sub); i >= 0 {
		s.subs = slices.Delete(s.subs, i, i+1)
	}
}

// ListenerCount returns the number of live subscriptions.
func (s *Store[S]) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
