package journal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statebind/pkg/store"
)

func TestMemStoreChain(t *testing.T) {
	ctx := context.Background()
	j := NewMemStore()
	require.NoError(t, j.EnsureTable(ctx))

	first, err := j.Append(ctx, "ADD_TODO", "test", "buy milk")
	require.NoError(t, err)
	second, err := j.Append(ctx, "ADD_TODO", "test", "walk dog")
	require.NoError(t, err)

	assert.Empty(t, first.PrevHash)
	assert.Equal(t, first.Hash, second.PrevHash)
	assert.JSONEq(t, `"walk dog"`, string(second.Payload))
	require.NoError(t, j.VerifyChain(ctx))

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemStoreRecent(t *testing.T) {
	ctx := context.Background()
	j := NewMemStore()
	for _, typ := range []string{"a", "b", "c"} {
		_, err := j.Append(ctx, typ, "test", nil)
		require.NoError(t, err)
	}

	recent, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Type)
	assert.Equal(t, "b", recent[1].Type)
	assert.Equal(t, json.RawMessage("null"), recent[0].Payload)

	recent, err = j.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestVerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	j := NewMemStore()
	for i := 0; i < 3; i++ {
		_, err := j.Append(ctx, "ADD_TODO", "test", "x")
		require.NoError(t, err)
	}
	j.entries[1].Payload = json.RawMessage(`"y"`)
	assert.ErrorIs(t, j.VerifyChain(ctx), ErrChainBroken)
}

func TestAppendUnmarshalablePayload(t *testing.T) {
	_, err := NewMemStore().Append(context.Background(), "bad", "test", make(chan int))
	assert.Error(t, err)
}

func addReducer(n int, a store.Action) (int, error) {
	if a.Type == "add" {
		return n + a.Payload.(int), nil
	}
	return n, nil
}

func TestRecorderJournalsDispatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j := NewMemStore()
	rec := NewRecorder(j, "test", 8)
	st, err := store.New(addReducer, 0, store.WithObserver(Observer[int](rec)))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	for i := 1; i <= 3; i++ {
		_, err := st.Dispatch(store.Action{Type: "add", Payload: i})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		n, _ := j.Count(ctx)
		return n == 3
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, j.VerifyChain(ctx))

	cancel()
	<-done
}

func TestRecorderDropsWhenFull(t *testing.T) {
	rec := NewRecorder(NewMemStore(), "test", 1)
	assert.True(t, rec.Record(store.Action{Type: "a"}))
	assert.False(t, rec.Record(store.Action{Type: "b"}))
	assert.EqualValues(t, 1, rec.Dropped())
}

func TestRecorderFlushesOnCancel(t *testing.T) {
	j := NewMemStore()
	rec := NewRecorder(j, "test", 4)
	rec.Record(store.Action{Type: "a"})
	rec.Record(store.Action{Type: "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	n, err := j.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// strictStore refuses appends under a cancelled context, as a database
// driver would.
type strictStore struct {
	*MemStore
}

func (s strictStore) Append(ctx context.Context, actionType, source string, payload any) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.MemStore.Append(ctx, actionType, source, payload)
}

func TestRecorderNeverAppendsWithCancelledContext(t *testing.T) {
	for i := 0; i < 20; i++ {
		j := strictStore{NewMemStore()}
		rec := NewRecorder(j, "test", 4)
		rec.Record(store.Action{Type: "a"})
		rec.Record(store.Action{Type: "b"})
		rec.Record(store.Action{Type: "c"})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		rec.Run(ctx)

		n, err := j.Count(context.Background())
		require.NoError(t, err)
		require.Equal(t, 3, n)
		require.NoError(t, j.VerifyChain(context.Background()))
	}
}
