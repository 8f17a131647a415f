//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/katchitechstudio/habersel-backend/internal/domain"
	"github.com/katchitechstudio/habersel-backend/internal/quota"
)

const testTTL = 24 * time.Hour

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_news.up.sql"),
			filepath.Join(migrationsPath, "002_create_scraping_blacklist.up.sql"),
			filepath.Join(migrationsPath, "003_create_api_quota.up.sql"),
			filepath.Join(migrationsPath, "004_create_run_markers.up.sql"),
			filepath.Join(migrationsPath, "005_create_system_info.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM news")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM scraping_blacklist")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM api_quota")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM run_markers")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM system_info")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func testRecord(title, url string) domain.Record {
	return domain.Record{
		Title:       title,
		Description: "A description long enough to matter",
		URL:         url,
		Image:       "https://example.com/img.jpg",
		SourceName:  "gnews",
		PublishedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresIntegrationSuite) TestArticleStore_SaveOne_Insert() {
	store := NewArticleStore(s.db)

	inserted, err := store.SaveOne(s.ctx, testRecord("First article title", "https://example.com/a"), "technology", testTTL)
	s.NoError(err)
	s.True(inserted)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM news")
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestArticleStore_SaveOne_DuplicateKeepsOneRow() {
	store := NewArticleStore(s.db)
	rec := testRecord("Same title twice", "https://example.com/dup")

	inserted, err := store.SaveOne(s.ctx, rec, "technology", testTTL)
	s.NoError(err)
	s.True(inserted)

	inserted, err = store.SaveOne(s.ctx, rec, "technology", testTTL)
	s.NoError(err)
	s.False(inserted)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM news")
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestArticleStore_SaveOne_RejectsBadRecord() {
	store := NewArticleStore(s.db)

	_, err := store.SaveOne(s.ctx, domain.Record{URL: "https://example.com/broken"}, "sports", testTTL)
	s.Error(err)

	_, err = store.SaveOne(s.ctx, domain.Record{Title: "No link"}, "sports", testTTL)
	s.Error(err)
}

func (s *PostgresIntegrationSuite) TestArticleStore_ListByCategory_ExcludesExpired() {
	store := NewArticleStore(s.db)

	_, err := store.SaveOne(s.ctx, testRecord("Live article", "https://example.com/live"), "economy", testTTL)
	s.Require().NoError(err)

	_, err = s.db.ExecContext(s.ctx, `
		INSERT INTO news (category, title, url, source, saved_at, expires_at)
		VALUES ('economy', 'Expired article', 'https://example.com/old', 'gnews', NOW() - INTERVAL '3 days', NOW() - INTERVAL '1 hour')`)
	s.Require().NoError(err)

	articles, err := store.ListByCategory(s.ctx, "economy", 10, 0)
	s.NoError(err)
	s.Len(articles, 1)
	s.Equal("Live article", articles[0].Title)
}

func (s *PostgresIntegrationSuite) TestArticleStore_DeleteExpired_Idempotent() {
	store := NewArticleStore(s.db)

	_, err := s.db.ExecContext(s.ctx, `
		INSERT INTO news (category, title, url, source, saved_at, expires_at)
		VALUES ('economy', 'Expired article', 'https://example.com/old', 'gnews', NOW() - INTERVAL '3 days', NOW() - INTERVAL '1 hour')`)
	s.Require().NoError(err)

	deleted, err := store.DeleteExpired(s.ctx)
	s.NoError(err)
	s.Equal(int64(1), deleted)

	deleted, err = store.DeleteExpired(s.ctx)
	s.NoError(err)
	s.Equal(int64(0), deleted)
}

func (s *PostgresIntegrationSuite) TestArticleStore_Unscraped_ExcludesBlacklisted() {
	store := NewArticleStore(s.db)
	blacklist := NewBlacklistStore(s.db)

	_, err := store.SaveOne(s.ctx, testRecord("Healthy site article", "https://example.com/ok"), "technology", testTTL)
	s.Require().NoError(err)
	_, err = store.SaveOne(s.ctx, testRecord("Broken site article", "https://example.com/bad"), "technology", testTTL)
	s.Require().NoError(err)

	for range 3 {
		_, err = blacklist.Increment(s.ctx, "https://example.com/bad", "timeout")
		s.Require().NoError(err)
	}

	articles, err := store.Unscraped(s.ctx, 10, 3)
	s.NoError(err)
	s.Len(articles, 1)
	s.Equal("Healthy site article", articles[0].Title)
}

func (s *PostgresIntegrationSuite) TestBlacklist_ClearReadmitsURL() {
	store := NewArticleStore(s.db)
	blacklist := NewBlacklistStore(s.db)

	_, err := store.SaveOne(s.ctx, testRecord("Recovering site article", "https://example.com/flaky"), "technology", testTTL)
	s.Require().NoError(err)

	for range 3 {
		_, err = blacklist.Increment(s.ctx, "https://example.com/flaky", "timeout")
		s.Require().NoError(err)
	}
	s.NoError(store.MarkQuarantined(s.ctx, "https://example.com/flaky"))

	articles, err := store.Unscraped(s.ctx, 10, 3)
	s.NoError(err)
	s.Empty(articles)

	s.NoError(blacklist.Clear(s.ctx, "https://example.com/flaky"))

	articles, err = store.Unscraped(s.ctx, 10, 3)
	s.NoError(err)
	s.Require().Len(articles, 1)
	s.Equal(domain.ContentUnscraped, articles[0].ContentState)

	count, err := blacklist.FailCount(s.ctx, "https://example.com/flaky")
	s.NoError(err)
	s.Equal(0, count)
}

func (s *PostgresIntegrationSuite) TestBlacklist_IncrementCounts() {
	blacklist := NewBlacklistStore(s.db)

	count, err := blacklist.Increment(s.ctx, "https://example.com/x", "no_content")
	s.NoError(err)
	s.Equal(1, count)

	count, err = blacklist.Increment(s.ctx, "https://example.com/x", "timeout")
	s.NoError(err)
	s.Equal(2, count)

	entries, err := blacklist.List(s.ctx, 10)
	s.NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("timeout", entries[0].Reason)
	s.Equal(2, entries[0].FailCount)
}

func (s *PostgresIntegrationSuite) TestQuotaStore_RoundTrip() {
	store := NewQuotaStore(s.db)

	entry := quota.Entry{
		Source:     "gnews",
		Limit:      100,
		Used:       7,
		ErrorCount: 1,
		Priority:   1,
		ResetAt:    time.Now().UTC().Truncate(time.Microsecond).Add(12 * time.Hour),
	}
	s.NoError(store.Save(s.ctx, entry))

	entry.Used = 8
	s.NoError(store.Save(s.ctx, entry))

	entries, err := store.Load(s.ctx)
	s.NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(8, entries[0].Used)
	s.Equal(100, entries[0].Limit)
}

func (s *PostgresIntegrationSuite) TestRunMarker_ClaimedOnce() {
	store := NewRunMarkerStore(s.db)

	first, err := store.CheckAndSet(s.ctx, "morning", "2026-09-01", 8)
	s.NoError(err)
	s.True(first)

	again, err := store.CheckAndSet(s.ctx, "morning", "2026-09-01", 8)
	s.NoError(err)
	s.False(again)

	nextDay, err := store.CheckAndSet(s.ctx, "morning", "2026-09-02", 8)
	s.NoError(err)
	s.True(nextDay)
}

func (s *PostgresIntegrationSuite) TestSystemStore_LastUpdate() {
	store := NewSystemStore(s.db)

	last, err := store.LastUpdate(s.ctx)
	s.NoError(err)
	s.Nil(last)

	now := time.Now().UTC().Truncate(time.Microsecond)
	s.NoError(store.SetLastUpdate(s.ctx, now))

	last, err = store.LastUpdate(s.ctx)
	s.NoError(err)
	s.Require().NotNil(last)
	s.WithinDuration(now, *last, time.Second)
}

func (s *PostgresIntegrationSuite) TestTransaction_RollbackOnError() {
	tm := NewTransactionManager(s.db)
	blacklist := NewBlacklistStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := blacklist.Increment(ctx, "https://example.com/tx", "timeout"); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Error(err)

	count, err := blacklist.FailCount(s.ctx, "https://example.com/tx")
	s.NoError(err)
	s.Equal(0, count)
}

func (s *PostgresIntegrationSuite) TestTransaction_NestedCallJoinsOuter() {
	tm := NewTransactionManager(s.db)
	blacklist := NewBlacklistStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		return tm.WithTransaction(ctx, func(inner context.Context) error {
			_, err := blacklist.Increment(inner, "https://example.com/nested", "timeout")
			return err
		})
	})
	s.NoError(err)

	count, err := blacklist.FailCount(s.ctx, "https://example.com/nested")
	s.NoError(err)
	s.Equal(1, count)
}
