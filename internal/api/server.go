package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"statebind/pkg/bind"
	"statebind/pkg/journal"
	"statebind/pkg/todo"
)

// Server is the HTTP inspection API over the process's to-do store.
type Server struct {
	host    *bind.Host[todo.State]
	journal journal.Store
	mux     *http.ServeMux
}

// New creates a new Server.
func New(host *bind.Host[todo.State], j journal.Store) *Server {
	s := &Server{
		host:    host,
		journal: j,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// State
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/state/stream", s.handleStateStream)
	s.mux.HandleFunc("POST /api/actions", s.handleActionCreate)

	// Journal
	s.mux.HandleFunc("GET /api/journal", s.handleJournalList)
	s.mux.HandleFunc("GET /api/journal/verify", s.handleJournalVerify)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.host.Store()
	if err != nil {
		writeError(w, 503, err.Error())
		return
	}
	entries, err := s.journal.Count(r.Context())
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, map[string]int{
		"todos":     len(st.GetState()),
		"listeners": st.ListenerCount(),
		"journal":   entries,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
