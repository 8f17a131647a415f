package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/katchitechstudio/habersel-backend/internal/domain"
)

type BlacklistStore struct {
	db *sqlx.DB
}

func NewBlacklistStore(db *sqlx.DB) *BlacklistStore {
	return &BlacklistStore{db: db}
}

// Increment records one more scrape failure for the url and returns the
// resulting fail count. The latest failure reason wins.
func (s *BlacklistStore) Increment(ctx context.Context, url, reason string) (int, error) {
	query := `
		INSERT INTO scraping_blacklist (url, fail_count, reason, first_failed, last_failed)
		VALUES ($1, 1, $2, NOW(), NOW())
		ON CONFLICT (url) DO UPDATE
		SET fail_count = scraping_blacklist.fail_count + 1,
		    reason = EXCLUDED.reason,
		    last_failed = NOW()
		RETURNING fail_count`

	var count int
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query, url, reason).Scan(&count)
	return count, err
}

// FailCount returns the recorded failures for a url, zero when unknown.
func (s *BlacklistStore) FailCount(ctx context.Context, url string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT fail_count FROM scraping_blacklist WHERE url = $1`, url)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return count, err
}

// Clear drops the blacklist entry for a url and re-admits any article
// it quarantined, in one statement. Clearing an unknown url is a no-op.
func (s *BlacklistStore) Clear(ctx context.Context, url string) error {
	query := `
		WITH removed AS (
			DELETE FROM scraping_blacklist WHERE url = $1 RETURNING url
		)
		UPDATE news n
		SET content_state = 'unscraped'
		FROM removed r
		WHERE n.url = r.url AND n.content_state = 'quarantined'`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, url)
	return err
}

// List returns blacklist entries ordered by most recent failure.
func (s *BlacklistStore) List(ctx context.Context, limit int) ([]domain.BlacklistEntry, error) {
	var entries []domain.BlacklistEntry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT url, fail_count, reason, first_failed, last_failed
		 FROM scraping_blacklist
		 ORDER BY last_failed DESC
		 LIMIT $1`, limit)
	return entries, err
}

// CountExhausted counts urls at or past the give-up threshold.
func (s *BlacklistStore) CountExhausted(ctx context.Context, threshold int) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM scraping_blacklist WHERE fail_count >= $1`, threshold)
	return count, err
}
