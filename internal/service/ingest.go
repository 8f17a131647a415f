package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/katchitechstudio/habersel-backend/internal/config"
	"github.com/katchitechstudio/habersel-backend/internal/dedup"
	"github.com/katchitechstudio/habersel-backend/internal/domain"
	"github.com/katchitechstudio/habersel-backend/internal/publisher"
	"github.com/katchitechstudio/habersel-backend/internal/quality"
	"github.com/katchitechstudio/habersel-backend/internal/source"
)

// existingWindow caps how many stored articles per category are loaded
// for cross-batch dedup.
const existingWindow = 100

type IngestService struct {
	sources   map[string]Source
	articles  ArticleStore
	system    SystemStore
	ledger    QuotaLedger
	publisher Publisher
	logger    *slog.Logger
	config    config.IngestConfig
}

func NewIngestService(
	sources []Source,
	articles ArticleStore,
	system SystemStore,
	ledger QuotaLedger,
	pub Publisher,
	logger *slog.Logger,
	cfg config.IngestConfig,
) *IngestService {
	byID := make(map[string]Source, len(sources))
	for _, src := range sources {
		byID[src.ID()] = src
	}
	return &IngestService{
		sources:   byID,
		articles:  articles,
		system:    system,
		ledger:    ledger,
		publisher: pub,
		logger:    logger,
		config:    cfg,
	}
}

// fetchBestSource walks the fallback chain in priority order until one
// source yields records. Sources over budget are skipped without
// spending quota; a failed or empty call consumes quota and falls
// through to the next source. Chain exhaustion is a normal outcome, not
// an error.
func (s *IngestService) fetchBestSource(ctx context.Context, category string, allowed []string) ([]domain.Record, string) {
	candidates := s.orderedSources(allowed)

	for _, src := range candidates {
		id := src.ID()
		if !s.ledger.CanConsume(id, 1) {
			s.logger.Debug("source over budget, skipping", "source", id, "category", category)
			continue
		}

		records, err := src.Fetch(ctx, category, s.config.FetchLimit)
		s.ledger.Consume(ctx, id, 1, err == nil && len(records) > 0)

		if err != nil {
			var srcErr *source.Error
			if errors.As(err, &srcErr) {
				s.logger.Warn("source fetch failed",
					"source", id,
					"category", category,
					"kind", srcErr.Kind,
					"status", srcErr.Status,
				)
			} else {
				s.logger.Warn("source fetch failed", "source", id, "category", category, "error", err)
			}
			continue
		}
		if len(records) == 0 {
			s.logger.Info("source returned nothing, falling through", "source", id, "category", category)
			continue
		}
		return records, id
	}

	s.logger.Warn("all sources exhausted", "category", category)
	return nil, ""
}

// orderedSources resolves the allowed list (empty means all) into
// sources sorted by fallback priority.
func (s *IngestService) orderedSources(allowed []string) []Source {
	var out []Source
	if len(allowed) == 0 {
		for _, src := range s.sources {
			out = append(out, src)
		}
	} else {
		for _, id := range allowed {
			if src, ok := s.sources[id]; ok {
				out = append(out, src)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.ledger.Priority(out[i].ID()) < s.ledger.Priority(out[j].ID())
	})
	return out
}

// UpdateCategory runs one full ingest pass for a category: fetch with
// fallback, dedup within the batch and against stored articles, score
// for quality, save, publish.
func (s *IngestService) UpdateCategory(ctx context.Context, category string, allowed []string) domain.IngestStats {
	stats := domain.IngestStats{Category: category}

	records, sourceID := s.fetchBestSource(ctx, category, allowed)
	stats.SourceUsed = sourceID
	stats.Fetched = len(records)
	if len(records) == 0 {
		return stats
	}

	unique, dropped := dedup.Dedupe(records)
	stats.Duplicates += dropped

	existing, err := s.articles.ListByCategory(ctx, category, existingWindow, 0)
	if err != nil {
		s.logger.Error("failed to load stored articles for dedup", "category", category, "error", err)
	} else {
		var alreadyStored int
		unique, alreadyStored = dedup.FilterAgainstExisting(unique, existing)
		stats.Duplicates += alreadyStored
	}

	kept, lowQuality := quality.Filter(unique, s.config.MinQuality)
	stats.LowQuality = lowQuality

	ttl := time.Duration(s.config.RetentionDays) * 24 * time.Hour
	for _, rec := range kept {
		inserted, err := s.articles.SaveOne(ctx, rec, category, ttl)
		switch {
		case err != nil:
			s.logger.Error("failed to save article", "url", rec.URL, "error", err)
			stats.Errors++
		case inserted:
			stats.Saved++
			s.publishCreated(ctx, rec, category)
		default:
			stats.Duplicates++
		}
	}

	s.logger.Info("category updated",
		"category", category,
		"source", sourceID,
		"fetched", stats.Fetched,
		"duplicates", stats.Duplicates,
		"low_quality", stats.LowQuality,
		"saved", stats.Saved,
		"errors", stats.Errors,
	)
	return stats
}

// UpdateAll ingests every configured category and stamps the last-update
// marker when anything landed.
func (s *IngestService) UpdateAll(ctx context.Context, allowed []string) []domain.IngestStats {
	results := make([]domain.IngestStats, 0, len(s.config.Categories))
	saved := 0
	for _, category := range s.config.Categories {
		stats := s.UpdateCategory(ctx, category, allowed)
		results = append(results, stats)
		saved += stats.Saved
	}

	if saved > 0 {
		if err := s.system.SetLastUpdate(ctx, time.Now()); err != nil {
			s.logger.Warn("failed to stamp last update", "error", err)
		}
	}
	return results
}

// Cleanup deletes articles past their retention horizon.
func (s *IngestService) Cleanup(ctx context.Context) (int64, error) {
	return s.articles.DeleteExpired(ctx)
}

// Latest returns the freshest articles across all categories.
func (s *IngestService) Latest(ctx context.Context, limit int) ([]domain.Article, error) {
	return s.articles.ListLatest(ctx, limit)
}

// ByCategory returns a page of a category's live articles.
func (s *IngestService) ByCategory(ctx context.Context, category string, limit, offset int) ([]domain.Article, error) {
	return s.articles.ListByCategory(ctx, category, limit, offset)
}

// Categories lists the configured ingest categories.
func (s *IngestService) Categories() []string {
	return s.config.Categories
}

// Status assembles the aggregate health view: article counts, quota
// budgets and the last successful run.
func (s *IngestService) Status(ctx context.Context) (*domain.SystemStatus, error) {
	counts, err := s.articles.CountByCategory(ctx)
	if err != nil {
		return nil, err
	}

	lastUpdate, err := s.system.LastUpdate(ctx)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	return &domain.SystemStatus{
		LastUpdate:    lastUpdate,
		TotalArticles: total,
		Categories:    counts,
		Quota:         s.ledger.Snapshot(),
	}, nil
}

func (s *IngestService) publishCreated(ctx context.Context, rec domain.Record, category string) {
	if s.publisher == nil {
		return
	}

	article := recordToArticle(rec, category)
	if err := s.publisher.Publish(ctx, article, publisher.ActionCreated); err != nil {
		s.logger.Warn("failed to publish article event", "url", rec.URL, "error", err)
	}
}

func recordToArticle(rec domain.Record, category string) *domain.Article {
	article := &domain.Article{
		Category:     category,
		Title:        rec.Title,
		URL:          rec.URL,
		SourceName:   rec.SourceName,
		ContentState: domain.ContentUnscraped,
	}
	if !rec.PublishedAt.IsZero() {
		published := rec.PublishedAt
		article.PublishedAt = &published
	}
	if rec.Description != "" {
		article.Description = &rec.Description
	}
	if rec.Image != "" {
		article.Image = &rec.Image
	}
	return article
}
