package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// RunMarkerStore enforces at-most-once slot execution per day. The
// marker row's uniqueness on (slot, run_date) is what makes the check
// atomic across concurrent triggers.
type RunMarkerStore struct {
	db *sqlx.DB
}

func NewRunMarkerStore(db *sqlx.DB) *RunMarkerStore {
	return &RunMarkerStore{db: db}
}

// CheckAndSet claims today's run for a slot. It returns true exactly once
// per (slot, date); every later caller gets false.
func (s *RunMarkerStore) CheckAndSet(ctx context.Context, slot string, date string, hour int) (bool, error) {
	query := `
		INSERT INTO run_markers (slot, run_date, run_hour, executed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (slot, run_date) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query, slot, date, hour)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteOlderThan prunes stale markers during cleanup runs.
func (s *RunMarkerStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM run_markers WHERE executed_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
