package api

import (
	"net/http"
)

func (s *Server) handleJournalList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	if entries == nil {
		writeJSON(w, 200, []any{})
		return
	}
	writeJSON(w, 200, entries)
}

func (s *Server) handleJournalVerify(w http.ResponseWriter, r *http.Request) {
	if err := s.journal.VerifyChain(r.Context()); err != nil {
		writeError(w, 409, err.Error())
		return
	}
	writeJSON(w, 200, map[string]bool{"ok": true})
}
