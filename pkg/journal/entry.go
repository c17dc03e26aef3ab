// Package journal keeps an append-only, hash-chained record of the actions a
// store has applied. It is an audit trail: nothing in it is ever fed back into
// a store.
package journal

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrChainBroken is returned when an entry's hash or link does not match.
var ErrChainBroken = errors.New("journal: chain broken")

// Entry is one applied action.
type Entry struct {
	ID        string          `json:"id"`        // UUID v7 (time-ordered)
	Type      string          `json:"type"`      // action type, e.g. "ADD_TODO"
	Timestamp time.Time       `json:"timestamp"` // when the action was applied
	Source    string          `json:"source"`    // process that applied it
	Payload   json.RawMessage `json:"payload"`   // action payload as JSON
	Hash      string          `json:"hash"`      // SHA-256 of canonical form
	PrevHash  string          `json:"prev_hash"` // hash chain link
}

// Store is the contract for journal persistence.
type Store interface {
	Append(ctx context.Context, actionType, source string, payload any) (*Entry, error)
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Count(ctx context.Context) (int, error)
	VerifyChain(ctx context.Context) error
	EnsureTable(ctx context.Context) error
}

func marshalPayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("null"), nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return b, nil
}

// verify walks entries in chronological order.
func verify(entries []Entry) error {
	prevHash := ""
	for i, e := range entries {
		if e.PrevHash != prevHash {
			return fmt.Errorf("%w: entry %d (%s): prev_hash %s, want %s", ErrChainBroken, i, e.ID, e.PrevHash, prevHash)
		}
		want := computeHash(prevHash, e.ID, e.Type, e.Source, e.Timestamp, e.Payload)
		if e.Hash != want {
			return fmt.Errorf("%w: entry %d (%s): hash %s, want %s", ErrChainBroken, i, e.ID, e.Hash, want)
		}
		prevHash = e.Hash
	}
	return nil
}

// computeHash computes a SHA-256 hash for chain integrity.
func computeHash(prevHash, id, actionType, source string, timestamp time.Time, payloadJSON []byte) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, id, actionType, source, timestamp.UnixNano(), string(payloadJSON))
	h := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", h)
}
