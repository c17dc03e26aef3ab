package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statebind/pkg/bind"
	"statebind/pkg/journal"
	"statebind/pkg/store"
	"statebind/pkg/todo"
)

func newTestServer(t *testing.T) (*Server, *store.Store[todo.State], *journal.MemStore) {
	t.Helper()
	st, err := todo.NewStore(nil)
	require.NoError(t, err)
	host := bind.NewHost[todo.State]()
	require.NoError(t, host.Provide(st))
	j := journal.NewMemStore()
	return New(host, j), st, j
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := do(t, s, "GET", "/health", "")
	assert.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStateAndActions(t *testing.T) {
	s, st, _ := newTestServer(t)

	rec := do(t, s, "GET", "/api/state", "")
	require.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"todos":[]}`, rec.Body.String())

	rec = do(t, s, "POST", "/api/actions", `{"type":"ADD_TODO","payload":"buy milk"}`)
	require.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"action":{"type":"ADD_TODO","payload":"buy milk"},"state":{"todos":["buy milk"]}}`, rec.Body.String())
	assert.Equal(t, todo.State{"buy milk"}, st.GetState())

	rec = do(t, s, "POST", "/api/actions", `{"type":"SOMETHING_ELSE"}`)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, todo.State{"buy milk"}, st.GetState())
}

func TestActionErrors(t *testing.T) {
	s, st, _ := newTestServer(t)

	rec := do(t, s, "POST", "/api/actions", `{`)
	assert.Equal(t, 400, rec.Code)

	rec = do(t, s, "POST", "/api/actions", `{"payload":"x"}`)
	assert.Equal(t, 400, rec.Code)

	rec = do(t, s, "POST", "/api/actions", `{"type":"ADD_TODO","payload":7}`)
	assert.Equal(t, 422, rec.Code)
	assert.Empty(t, st.GetState())
}

func TestNoStore(t *testing.T) {
	s := New(bind.NewHost[todo.State](), journal.NewMemStore())
	assert.Equal(t, 503, do(t, s, "GET", "/api/state", "").Code)
	assert.Equal(t, 503, do(t, s, "POST", "/api/actions", `{"type":"ADD_TODO","payload":"x"}`).Code)
	assert.Equal(t, 503, do(t, s, "GET", "/api/status", "").Code)
}

func TestJournalEndpoints(t *testing.T) {
	s, _, j := newTestServer(t)

	rec := do(t, s, "GET", "/api/journal", "")
	require.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	ctx := context.Background()
	_, err := j.Append(ctx, todo.ActionAdd, "test", "buy milk")
	require.NoError(t, err)
	_, err = j.Append(ctx, todo.ActionAdd, "test", "walk dog")
	require.NoError(t, err)

	rec = do(t, s, "GET", "/api/journal?limit=1", "")
	require.Equal(t, 200, rec.Code)
	var entries []journal.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.JSONEq(t, `"walk dog"`, string(entries[0].Payload))

	rec = do(t, s, "GET", "/api/journal/verify", "")
	assert.Equal(t, 200, rec.Code)

	rec = do(t, s, "GET", "/api/status", "")
	require.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"todos":0,"listeners":0,"journal":2}`, rec.Body.String())
}

func TestStateStream(t *testing.T) {
	s, st, _ := newTestServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/state/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
				lines <- data
			}
		}
		close(lines)
	}()

	next := func() string {
		select {
		case l := <-lines:
			return l
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
			return ""
		}
	}

	assert.JSONEq(t, `{"todos":[]}`, next())
	assert.Equal(t, 1, st.ListenerCount())

	_, err = st.Dispatch(todo.Add("buy milk"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"todos":["buy milk"]}`, next())

	cancel()
	require.Eventually(t, func() bool { return st.ListenerCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
