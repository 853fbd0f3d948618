package sequence

import (
	"context"
	"database/sql"

	"academy/internal/platform/database"
	txcontext "academy/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Increment is a single upsert; the row lock it takes is held until the
// surrounding transaction ends.
func (s *PostgresStore) Increment(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO sequence_counters (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequence_counters.value + 1
		RETURNING value
	`
	var v int64
	if err := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, name).Scan(&v); err != nil {
		return 0, database.Classify(err, "increment sequence")
	}
	return v, nil
}
