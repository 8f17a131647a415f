package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/katchitechstudio/habersel-backend/internal/quota"
)

// QuotaStore persists per-source usage counters so quota windows survive
// restarts. It backs quota.Ledger.
type QuotaStore struct {
	db *sqlx.DB
}

func NewQuotaStore(db *sqlx.DB) *QuotaStore {
	return &QuotaStore{db: db}
}

func (s *QuotaStore) Load(ctx context.Context) ([]quota.Entry, error) {
	var entries []quota.Entry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT source, daily_limit, used, error_count, priority, reset_at FROM api_quota`)
	return entries, err
}

func (s *QuotaStore) Save(ctx context.Context, e quota.Entry) error {
	query := `
		INSERT INTO api_quota (source, daily_limit, used, error_count, priority, reset_at)
		VALUES (:source, :daily_limit, :used, :error_count, :priority, :reset_at)
		ON CONFLICT (source) DO UPDATE
		SET daily_limit = EXCLUDED.daily_limit,
		    used = EXCLUDED.used,
		    error_count = EXCLUDED.error_count,
		    priority = EXCLUDED.priority,
		    reset_at = EXCLUDED.reset_at`

	_, err := s.db.NamedExecContext(ctx, query, e)
	return err
}
