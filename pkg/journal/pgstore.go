package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed journal.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the journal table if it doesn't exist. Payloads are
// kept as TEXT so the hashed bytes survive the round trip.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS action_journal (
			id        TEXT PRIMARY KEY,
			type      TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			source    TEXT NOT NULL,
			payload   TEXT NOT NULL DEFAULT 'null',
			hash      TEXT NOT NULL,
			prev_hash TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_action_journal_timestamp_id ON action_journal(timestamp, id)`)
	return err
}

// Append stores a new entry, extending the hash chain.
func (s *PgStore) Append(ctx context.Context, actionType, source string, payload any) (*Entry, error) {
	payloadJSON, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	now := time.Now().Truncate(time.Microsecond)
	id := uuid.Must(uuid.NewV7()).String()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serializes appenders so the chain stays linear.
	if _, err := tx.Exec(ctx, `LOCK TABLE action_journal IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return nil, fmt.Errorf("lock journal: %w", err)
	}

	prevHash, err := chainHead(tx.QueryRow(ctx, `SELECT hash FROM action_journal ORDER BY timestamp DESC, id DESC LIMIT 1`))
	if err != nil {
		return nil, err
	}

	e := &Entry{
		ID:        id,
		Type:      actionType,
		Timestamp: now,
		Source:    source,
		Payload:   json.RawMessage(payloadJSON),
		PrevHash:  prevHash,
	}
	e.Hash = computeHash(prevHash, e.ID, e.Type, e.Source, e.Timestamp, payloadJSON)

	_, err = tx.Exec(ctx, `
		INSERT INTO action_journal (id, type, timestamp, source, payload, hash, prev_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Type, e.Timestamp, e.Source, string(payloadJSON), e.Hash, e.PrevHash)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit entry: %w", err)
	}
	return e, nil
}

// chainHead scans the hash of the newest entry. An empty journal has an
// empty head; any other failure aborts the append so the chain never forks.
func chainHead(row pgx.Row) (string, error) {
	var hash string
	if err := row.Scan(&hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("read chain head: %w", err)
	}
	return hash, nil
}

// Recent returns the most recent entries in reverse chronological order.
func (s *PgStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.scanMany(ctx, `
		SELECT id, type, timestamp, source, payload, hash, prev_hash
		FROM action_journal ORDER BY timestamp DESC, id DESC LIMIT $1`, limit)
}

// Count returns the total number of entries.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM action_journal`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// VerifyChain walks the whole journal chronologically and checks every link.
func (s *PgStore) VerifyChain(ctx context.Context) error {
	entries, err := s.scanMany(ctx, `
		SELECT id, type, timestamp, source, payload, hash, prev_hash
		FROM action_journal ORDER BY timestamp ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("verify chain query: %w", err)
	}
	return verify(entries)
}

func (s *PgStore) scanMany(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload string
		if err := rows.Scan(&e.ID, &e.Type, &e.Timestamp, &e.Source, &payload, &e.Hash, &e.PrevHash); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return entries, nil
}
