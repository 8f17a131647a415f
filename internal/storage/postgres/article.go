package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/katchitechstudio/habersel-backend/internal/domain"
)

type ArticleStore struct {
	db *sqlx.DB
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

const articleColumns = `id, category, title, description, url, image, source, published_at, saved_at, expires_at, full_content, content_state`

// SaveOne inserts a record as a fresh unscraped article. A uniqueness
// conflict on (title, url) is the final dedup backstop: it reports
// inserted=false without raising.
func (s *ArticleStore) SaveOne(ctx context.Context, rec domain.Record, category string, ttl time.Duration) (bool, error) {
	if rec.Title == "" || rec.URL == "" {
		return false, fmt.Errorf("record missing title or url")
	}

	query := `
		INSERT INTO news (category, title, description, url, image, source, published_at, expires_at, content_state)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7, NOW() + $8::interval, 'unscraped')
		ON CONFLICT ON CONSTRAINT unique_news DO NOTHING
		RETURNING id`

	var published any
	if !rec.PublishedAt.IsZero() {
		published = rec.PublishedAt
	}

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		category,
		rec.Title,
		rec.Description,
		rec.URL,
		rec.Image,
		rec.SourceName,
		published,
		fmt.Sprintf("%d seconds", int(ttl.Seconds())),
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListByCategory returns non-expired articles, newest saved first.
func (s *ArticleStore) ListByCategory(ctx context.Context, category string, limit, offset int) ([]domain.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM news
		WHERE category = $1 AND expires_at > NOW()
		ORDER BY saved_at DESC
		LIMIT $2 OFFSET $3`

	var articles []domain.Article
	err := s.db.SelectContext(ctx, &articles, query, category, limit, offset)
	return articles, err
}

// ListLatest returns the freshest non-expired articles across categories.
func (s *ArticleStore) ListLatest(ctx context.Context, limit int) ([]domain.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM news
		WHERE expires_at > NOW()
		ORDER BY saved_at DESC
		LIMIT $1`

	var articles []domain.Article
	err := s.db.SelectContext(ctx, &articles, query, limit)
	return articles, err
}

// Unscraped selects scrape candidates: unscraped, not expired, and whose
// url has not hit the blacklist threshold. Newest saved first.
func (s *ArticleStore) Unscraped(ctx context.Context, limit, blacklistAfter int) ([]domain.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM news n
		WHERE n.content_state = 'unscraped'
		  AND n.expires_at > NOW()
		  AND NOT EXISTS (
			SELECT 1 FROM scraping_blacklist b
			WHERE b.url = n.url AND b.fail_count >= $2
		  )
		ORDER BY n.saved_at DESC
		LIMIT $1`

	var articles []domain.Article
	err := s.db.SelectContext(ctx, &articles, query, limit, blacklistAfter)
	return articles, err
}

// UpdateContent stores the scraped text and flips the article to scraped.
// The scraped image wins over the originally fetched one when present.
func (s *ArticleStore) UpdateContent(ctx context.Context, id int64, content string, image *string) error {
	query := `
		UPDATE news
		SET full_content = $2,
		    image = COALESCE($3, image),
		    content_state = 'scraped'
		WHERE id = $1`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, id, content, image)
	return err
}

// MarkQuarantined flags every unscraped article for a url the blacklist
// has given up on.
func (s *ArticleStore) MarkQuarantined(ctx context.Context, url string) error {
	query := `UPDATE news SET content_state = 'quarantined' WHERE url = $1 AND content_state = 'unscraped'`
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, url)
	return err
}

// DeleteExpired removes every article past its retention horizon. Safe to
// call repeatedly.
func (s *ArticleStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM news WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountByCategory returns live article counts keyed by category.
func (s *ArticleStore) CountByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM news WHERE expires_at > NOW() GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		counts[category] = n
	}
	return counts, rows.Err()
}

// CountByState returns live article counts keyed by content state, for
// scraping statistics.
func (s *ArticleStore) CountByState(ctx context.Context) (map[domain.ContentState]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content_state, COUNT(*) FROM news WHERE expires_at > NOW() GROUP BY content_state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ContentState]int)
	for rows.Next() {
		var state domain.ContentState
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}
