package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

const lastUpdateKey = "last_update"

// SystemStore holds small key/value operational facts, currently just
// the timestamp of the last successful ingest run.
type SystemStore struct {
	db *sqlx.DB
}

func NewSystemStore(db *sqlx.DB) *SystemStore {
	return &SystemStore{db: db}
}

// LastUpdate returns the time of the last successful run, or nil when no
// run has completed yet.
func (s *SystemStore) LastUpdate(ctx context.Context) (*time.Time, error) {
	var value time.Time
	err := s.db.GetContext(ctx, &value,
		`SELECT value FROM system_info WHERE key = $1`, lastUpdateKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (s *SystemStore) SetLastUpdate(ctx context.Context, t time.Time) error {
	query := `
		INSERT INTO system_info (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`

	_, err := s.db.ExecContext(ctx, query, lastUpdateKey, t.UTC())
	return err
}
