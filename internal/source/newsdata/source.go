package newsdata

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/katchitechstudio/habersel-backend/internal/domain"
	"github.com/katchitechstudio/habersel-backend/internal/source"
)

const (
	SourceID   = "newsdata"
	SourceName = "NewsData"

	defaultBaseURL = "https://newsdata.io/api/1"

	pubDateLayout = "2006-01-02 15:04:05"
)

type Config struct {
	APIKey   string
	BaseURL  string
	Language string
	Timeout  time.Duration
}

// Source is the last-resort provider in the default fallback chain; its
// free tier allows only a handful of calls per day.
type Source struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	language   string
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Source {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Source{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		language:   cfg.Language,
		logger:     logger.With("source", SourceID),
	}
}

func (s *Source) ID() string   { return SourceID }
func (s *Source) Name() string { return SourceName }

func (s *Source) Fetch(ctx context.Context, category string, limit int) ([]domain.Record, error) {
	q := url.Values{}
	q.Set("apikey", s.apiKey)
	q.Set("category", category)
	q.Set("language", s.language)

	var resp apiResponse
	if err := source.GetJSON(ctx, s.httpClient, SourceID, s.baseURL+"/news?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, limit)
	for _, r := range resp.Results {
		if len(records) >= limit {
			break
		}
		if r.Title == "" || r.Link == "" {
			continue
		}
		rec := domain.Record{
			Title:       r.Title,
			Description: r.Description,
			URL:         r.Link,
			Image:       r.ImageURL,
			SourceName:  SourceName,
		}
		if t, err := time.Parse(pubDateLayout, r.PubDate); err == nil {
			rec.PublishedAt = t.UTC()
		}
		records = append(records, rec)
	}
	return records, nil
}
