package journal

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"statebind/pkg/store"
)

const flushTimeout = 2 * time.Second

// Recorder moves applied actions off the dispatch path and into a Store.
// Record never blocks; when the buffer is full the action is dropped.
type Recorder struct {
	journal Store
	source  string
	ch      chan store.Action
	dropped atomic.Int64
}

// NewRecorder creates a Recorder with room for buffer pending actions.
func NewRecorder(j Store, source string, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 64
	}
	return &Recorder{
		journal: j,
		source:  source,
		ch:      make(chan store.Action, buffer),
	}
}

// Observer returns a store observer that records every applied action.
func Observer[S any](r *Recorder) store.Observer[S] {
	return func(a store.Action, _ S) {
		r.Record(a)
	}
}

// Record queues a for appending. It reports false if a was dropped.
func (r *Recorder) Record(a store.Action) bool {
	select {
	case r.ch <- a:
		return true
	default:
		r.dropped.Add(1)
		log.Printf("journal: buffer full, dropping %s", a.Type)
		return false
	}
}

// Dropped returns how many actions were dropped.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Run appends queued actions until ctx is cancelled, then flushes what is
// still buffered. Actions taken off the queue after cancellation are appended
// under a detached context bounded by flushTimeout.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.flush(ctx)
			return
		case a := <-r.ch:
			if ctx.Err() != nil {
				r.flush(ctx, a)
				return
			}
			r.append(ctx, a)
		}
	}
}

func (r *Recorder) flush(parent context.Context, pending ...store.Action) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), flushTimeout)
	defer cancel()
	for _, a := range pending {
		r.append(ctx, a)
	}
	for {
		select {
		case a := <-r.ch:
			r.append(ctx, a)
		default:
			return
		}
	}
}

func (r *Recorder) append(ctx context.Context, a store.Action) {
	if _, err := r.journal.Append(ctx, a.Type, r.source, a.Payload); err != nil {
		log.Printf("journal: append %s: %v", a.Type, err)
	}
}
