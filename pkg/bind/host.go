package bind

import (
	"context"
	"errors"
	"sync"

	"statebind/pkg/store"
)

var (
	// ErrNoStore means no store was provided to the host.
	ErrNoStore         = errors.New("bind: no active store")
	ErrNilStore        = errors.New("bind: nil store")
	ErrAlreadyProvided = errors.New("bind: store already provided")
)

// Host holds the active store for every binding mounted beneath it. The
// composition root provides the store once; bindings only read it.
type Host[S any] struct {
	mu    sync.RWMutex
	store *store.Store[S]
}

// NewHost returns an empty Host.
func NewHost[S any]() *Host[S] {
	return &Host[S]{}
}

// Provide sets the active store. It succeeds only once.
func (h *Host[S]) Provide(s *store.Store[S]) error {
	if s == nil {
		return ErrNilStore
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.store != nil {
		return ErrAlreadyProvided
	}
	h.store = s
	return nil
}

// Store returns the active store, or ErrNoStore if none was provided.
func (h *Host[S]) Store() (*store.Store[S], error) {
	if h == nil {
		return nil, ErrNoStore
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.store == nil {
		return nil, ErrNoStore
	}
	return h.store, nil
}

type hostKey[S any] struct{}

// WithHost returns a context carrying h.
func WithHost[S any](ctx context.Context, h *Host[S]) context.Context {
	return context.WithValue(ctx, hostKey[S]{}, h)
}

// HostFrom returns the Host stored in ctx by WithHost.
func HostFrom[S any](ctx context.Context) (*Host[S], bool) {
	h, ok := ctx.Value(hostKey[S]{}).(*Host[S])
	return h, ok && h != nil
}
