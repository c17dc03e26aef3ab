package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"statebind/pkg/bind"
	"statebind/pkg/store"
	"statebind/pkg/todo"
)

type stateBody struct {
	Todos todo.State `json:"todos"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.host.Store()
	if err != nil {
		writeError(w, 503, err.Error())
		return
	}
	writeJSON(w, 200, stateBody{Todos: st.GetState()})
}

func (s *Server) handleActionCreate(w http.ResponseWriter, r *http.Request) {
	st, err := s.host.Store()
	if err != nil {
		writeError(w, 503, err.Error())
		return
	}
	var a store.Action
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if a.Type == "" {
		writeError(w, 400, "type is required")
		return
	}
	a, err = st.Dispatch(a)
	if err != nil {
		writeError(w, 422, err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{
		"action": a,
		"state":  stateBody{Todos: st.GetState()},
	})
}

// handleStateStream mounts a binding for the lifetime of the request and
// sends the list after every store notification.
func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, 500, "streaming not supported")
		return
	}

	updates := make(chan todo.State, 1)
	b := todo.Connect(bind.ComponentFunc[todo.Own, todo.StateProps, todo.DispatchProps](func(p todo.Props) {
		offerLatest(updates, p.State.Todos)
	}))

	ctx := r.Context()
	err := b.Run(s.host, todo.Own{}, func() error {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(200)
		flusher.Flush()

		for {
			select {
			case <-ctx.Done():
				return nil
			case todos := <-updates:
				data, err := json.Marshal(stateBody{Todos: todos})
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
					return err
				}
				flusher.Flush()
			}
		}
	})
	if errors.Is(err, bind.ErrNoStore) {
		writeError(w, 503, err.Error())
		return
	}
	if err != nil {
		log.Printf("api: state stream: %v", err)
	}
}

// offerLatest replaces whatever is pending in ch with v. Slow readers only
// ever see the newest list.
func offerLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
