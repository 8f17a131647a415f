// Package rss adapts plain RSS/Atom feeds into the canonical record shape.
// Feeds are free, so this source typically carries a generous daily limit
// and sits late in the fallback chain as a safety net.
package rss

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/katchitechstudio/habersel-backend/internal/domain"
	"github.com/katchitechstudio/habersel-backend/internal/source"
)

const (
	SourceID   = "rss"
	SourceName = "RSS"
)

type Config struct {
	// Feeds maps a category to the feed URLs that serve it.
	Feeds   map[string][]string
	Timeout time.Duration
}

type Source struct {
	parser  *gofeed.Parser
	feeds   map[string][]string
	timeout time.Duration
	logger  *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Source {
	parser := gofeed.NewParser()
	parser.UserAgent = "HaberselBot/1.0"
	return &Source{
		parser:  parser,
		feeds:   cfg.Feeds,
		timeout: cfg.Timeout,
		logger:  logger.With("source", SourceID),
	}
}

func (s *Source) ID() string   { return SourceID }
func (s *Source) Name() string { return SourceName }

// Fetch reads every feed configured for the category until limit records
// are collected. A dead feed is skipped, not fatal; the call only fails
// when no configured feed could be read at all.
func (s *Source) Fetch(ctx context.Context, category string, limit int) ([]domain.Record, error) {
	urls := s.feeds[category]
	if len(urls) == 0 {
		return nil, nil
	}

	var records []domain.Record
	var lastErr error
	failed := 0

	for _, feedURL := range urls {
		if len(records) >= limit {
			break
		}

		fctx, cancel := context.WithTimeout(ctx, s.timeout)
		feed, err := s.parser.ParseURLWithContext(feedURL, fctx)
		cancel()
		if err != nil {
			failed++
			lastErr = err
			s.logger.Warn("feed unreadable", "feed", feedURL, "error", err)
			continue
		}

		for _, item := range feed.Items {
			if len(records) >= limit {
				break
			}
			if item.Title == "" || item.Link == "" {
				continue
			}
			rec := domain.Record{
				Title:       item.Title,
				Description: item.Description,
				URL:         item.Link,
				SourceName:  feed.Title,
			}
			if rec.SourceName == "" {
				rec.SourceName = SourceName
			}
			if item.Image != nil {
				rec.Image = item.Image.URL
			}
			if item.PublishedParsed != nil {
				rec.PublishedAt = item.PublishedParsed.UTC()
			}
			records = append(records, rec)
		}
	}

	if len(records) == 0 && failed == len(urls) && lastErr != nil {
		return nil, &source.Error{Source: SourceID, Kind: source.KindUnavailable, Err: lastErr}
	}
	return records, nil
}
