package journal

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process journal, used when no database is configured.
type MemStore struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// EnsureTable is a no-op.
func (s *MemStore) EnsureTable(context.Context) error { return nil }

// Append adds an entry linked to the previous one.
func (s *MemStore) Append(_ context.Context, actionType, source string, payload any) (*Entry, error) {
	payloadJSON, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prevHash := ""
	if n := len(s.entries); n > 0 {
		prevHash = s.entries[n-1].Hash
	}
	e := Entry{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      actionType,
		Timestamp: time.Now().Truncate(time.Microsecond),
		Source:    source,
		Payload:   json.RawMessage(payloadJSON),
		PrevHash:  prevHash,
	}
	e.Hash = computeHash(prevHash, e.ID, e.Type, e.Source, e.Timestamp, payloadJSON)
	s.entries = append(s.entries, e)
	return &e, nil
}

// Recent returns up to limit entries, newest first.
func (s *MemStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(limit, len(s.entries))
	if n <= 0 {
		return nil, nil
	}
	out := slices.Clone(s.entries[len(s.entries)-n:])
	slices.Reverse(out)
	return out, nil
}

// Count returns the number of entries.
func (s *MemStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

// VerifyChain checks every link from the first entry on.
func (s *MemStore) VerifyChain(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return verify(s.entries)
}
