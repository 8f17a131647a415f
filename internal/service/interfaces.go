package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/katchitechstudio/habersel-backend/internal/domain"
)

type ArticleStore interface {
	SaveOne(ctx context.Context, rec domain.Record, category string, ttl time.Duration) (bool, error)
	ListByCategory(ctx context.Context, category string, limit, offset int) ([]domain.Article, error)
	ListLatest(ctx context.Context, limit int) ([]domain.Article, error)
	CountByCategory(ctx context.Context) (map[string]int, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type SystemStore interface {
	LastUpdate(ctx context.Context) (*time.Time, error)
	SetLastUpdate(ctx context.Context, t time.Time) error
}

type Source interface {
	ID() string
	Name() string
	Fetch(ctx context.Context, category string, limit int) ([]domain.Record, error)
}

// QuotaLedger guards per-source request budgets. CanConsume is a pure
// check; Consume records an attempted call whether or not it succeeded.
type QuotaLedger interface {
	CanConsume(source string, n int) bool
	Consume(ctx context.Context, source string, n int, success bool)
	Priority(source string) int
	Snapshot() []domain.QuotaStats
}

type Publisher interface {
	Publish(ctx context.Context, article *domain.Article, action string) error
	Close() error
}
