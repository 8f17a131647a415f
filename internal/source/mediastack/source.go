package mediastack

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/katchitechstudio/habersel-backend/internal/domain"
	"github.com/katchitechstudio/habersel-backend/internal/source"
)

const (
	SourceID   = "mediastack"
	SourceName = "Mediastack"

	// The free tier only serves plain HTTP.
	defaultBaseURL = "http://api.mediastack.com/v1"
)

type Config struct {
	APIKey   string
	BaseURL  string
	Language string
	Timeout  time.Duration
}

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
	q.Set("access_key", s.apiKey)
	q.Set("categories", category)
	q.Set("languages", s.language)
	q.Set("limit", fmt.Sprintf("%d", limit))

	var resp apiResponse
	if err := source.GetJSON(ctx, s.httpClient, SourceID, s.baseURL+"/news?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.Title == "" || d.URL == "" {
			continue
		}
		rec := domain.Record{
			Title:       d.Title,
			Description: d.Description,
			URL:         d.URL,
			Image:       d.Image,
			SourceName:  SourceName,
		}
		if t, err := time.Parse(time.RFC3339, d.PublishedAt); err == nil {
			rec.PublishedAt = t
		}
		records = append(records, rec)
	}
	return records, nil
}
