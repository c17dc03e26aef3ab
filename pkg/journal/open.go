package journal

import (
	"context"
	"errors"
	"log"

	"statebind/internal/db"
)

// Connect returns the Postgres journal named by DATABASE_URL. It fails with
// db.ErrNoDatabase when the variable is unset. The returned close function
// releases the pool.
func Connect(ctx context.Context) (Store, func(), error) {
	pool, err := db.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	j := NewPgStore(pool)
	if err := j.EnsureTable(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return j, pool.Close, nil
}

// Open is Connect with a MemStore fallback for processes that only need a
// journal while they run.
func Open(ctx context.Context) (Store, func(), error) {
	j, release, err := Connect(ctx)
	if errors.Is(err, db.ErrNoDatabase) {
		log.Println("journal: DATABASE_URL not set, keeping journal in memory")
		return NewMemStore(), func() {}, nil
	}
	return j, release, err
}
