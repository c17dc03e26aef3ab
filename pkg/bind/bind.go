// Package bind connects presentation components to a store.
//
// A Bound wraps one component instance. Mounting it subscribes to the store
// held by a Host; every store notification re-derives the component's props
// and renders it again. Unmounting releases the subscription.
package bind

import (
	"errors"
	"sync"

	"statebind/pkg/store"
)

var (
	// ErrMounted is returned by Mount on a binding that is already mounted.
	ErrMounted    = errors.New("bind: already mounted")
	ErrNotMounted = errors.New("bind: not mounted")
)

// Props is what a bound component receives. Fields are ordered by precedence:
// Own is the lowest, Dispatch the highest. A component that finds the same
// input in more than one field reads it from the later one.
type Props[O, SP, DP any] struct {
	Own      O
	State    SP
	Dispatch DP
}

// MapState derives props from the store state and the own props.
type MapState[S, O, SP any] func(state S, own O) SP

// MapDispatch derives callback props from the store's dispatch.
type MapDispatch[O, DP any] func(dispatch store.DispatchFunc, own O) DP

// Component is a presentation component.
type Component[O, SP, DP any] interface {
	Render(Props[O, SP, DP])
}

// ComponentFunc adapts a function to Component.
type ComponentFunc[O, SP, DP any] func(Props[O, SP, DP])

// Render calls f(p).
func (f ComponentFunc[O, SP, DP]) Render(p Props[O, SP, DP]) { f(p) }

type options[SP any] struct {
	equal func(prev, next SP) bool
}

// Option configures bindings created by Connect.
type Option[SP any] func(*options[SP])

// WithStateEqual makes store notifications skip the re-render when the
// state-derived props compare equal to the previously rendered ones. Without
// it every notification re-renders.
func WithStateEqual[SP any](eq func(prev, next SP) bool) Option[SP] {
	return func(o *options[SP]) { o.equal = eq }
}

// Connect returns a function that wraps a component in a Bound using the
// given mappers.
func Connect[S, O, SP, DP any](mapState MapState[S, O, SP], mapDispatch MapDispatch[O, DP], opts ...Option[SP]) func(Component[O, SP, DP]) *Bound[S, O, SP, DP] {
	var o options[SP]
	for _, opt := range opts {
		opt(&o)
	}
	return func(c Component[O, SP, DP]) *Bound[S, O, SP, DP] {
		return &Bound[S, O, SP, DP]{
			mapState:    mapState,
			mapDispatch: mapDispatch,
			component:   c,
			equal:       o.equal,
		}
	}
}

// Bound is one mounted-or-not instance of a connected component.
type Bound[S, O, SP, DP any] struct {
	mapState    MapState[S, O, SP]
	mapDispatch MapDispatch[O, DP]
	component   Component[O, SP, DP]
	equal       func(prev, next SP) bool

	mu       sync.Mutex
	st       *store.Store[S]
	unsub    store.Unsubscribe
	own      O
	props    Props[O, SP, DP]
	rendered bool

	delivering bool
	dirty      bool
	forced     bool
}

// Mount resolves the store from host, subscribes to it and renders once.
func (b *Bound[S, O, SP, DP]) Mount(host *Host[S], own O) error {
	st, err := host.Store()
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.st != nil {
		b.mu.Unlock()
		return ErrMounted
	}
	b.st = st
	b.own = own
	b.unsub = st.Subscribe(b.handleChange)
	b.mu.Unlock()

	b.render(false)
	return nil
}

// Unmount releases the subscription. It is safe to call at any time and any
// number of times.
func (b *Bound[S, O, SP, DP]) Unmount() {
	b.mu.Lock()
	unsub := b.unsub
	b.st = nil
	b.unsub = nil
	b.rendered = false
	b.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Run mounts b for the duration of fn and unmounts it on every exit path,
// including a panic in fn.
func (b *Bound[S, O, SP, DP]) Run(host *Host[S], own O, fn func() error) error {
	if err := b.Mount(host, own); err != nil {
		return err
	}
	defer b.Unmount()
	return fn()
}

// SetOwn replaces the own props and renders.
func (b *Bound[S, O, SP, DP]) SetOwn(own O) error {
	b.mu.Lock()
	if b.st == nil {
		b.mu.Unlock()
		return ErrNotMounted
	}
	b.own = own
	b.mu.Unlock()

	b.render(false)
	return nil
}

// Render re-derives props from the current state and renders.
func (b *Bound[S, O, SP, DP]) Render() error {
	if !b.render(false) {
		return ErrNotMounted
	}
	return nil
}

// Props returns the props of the last render.
func (b *Bound[S, O, SP, DP]) Props() (Props[O, SP, DP], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.props, b.rendered
}

// Mounted reports whether b currently holds a subscription.
func (b *Bound[S, O, SP, DP]) Mounted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st != nil
}

func (b *Bound[S, O, SP, DP]) handleChange() {
	b.render(true)
}

// render returns false when b is not mounted. Only one goroutine delivers
// props to the component at a time; a render requested meanwhile, from a
// concurrent dispatch or from the component itself, marks b dirty and the
// active deliverer re-derives before it returns. The component is called
// without b.mu held so it may dispatch synchronously.
func (b *Bound[S, O, SP, DP]) render(fromStore bool) bool {
	b.mu.Lock()
	if b.st == nil {
		b.mu.Unlock()
		return false
	}
	if b.delivering {
		b.dirty = true
		b.forced = b.forced || !fromStore
		b.mu.Unlock()
		return true
	}
	b.delivering = true

	for {
		p := Props[O, SP, DP]{
			Own:      b.own,
			State:    b.mapState(b.st.GetState(), b.own),
			Dispatch: b.mapDispatch(b.st.Dispatch, b.own),
		}
		skip := fromStore && b.equal != nil && b.rendered && b.equal(b.props.State, p.State)
		if !skip {
			b.props = p
			b.rendered = true
		}
		b.mu.Unlock()

		if !skip {
			b.deliver(p)
		}

		b.mu.Lock()
		if !b.dirty || b.st == nil {
			break
		}
		fromStore = !b.forced
		b.dirty, b.forced = false, false
	}
	b.delivering = false
	b.mu.Unlock()
	return true
}

// deliver calls the component. If it panics, b stops delivering so later
// renders are not lost.
func (b *Bound[S, O, SP, DP]) deliver(p Props[O, SP, DP]) {
	done := false
	defer func() {
		if !done {
			b.mu.Lock()
			b.delivering, b.dirty, b.forced = false, false, false
			b.mu.Unlock()
		}
	}()
	b.component.Render(p)
	done = true
}
