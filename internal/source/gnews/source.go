package gnews

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
	SourceID   = "gnews"
	SourceName = "GNews"

	defaultBaseURL = "https://gnews.io/api/v4"
)

type Config struct {
	APIKey   string
	BaseURL  string
	Language string
	Timeout  time.Duration
}

// Source fetches top headlines from the GNews v4 API.
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
	q.Set("category", category)
	q.Set("lang", s.language)
	q.Set("max", fmt.Sprintf("%d", limit))
	q.Set("apikey", s.apiKey)

	var resp apiResponse
	if err := source.GetJSON(ctx, s.httpClient, SourceID, s.baseURL+"/top-headlines?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if a.Title == "" || a.URL == "" {
			continue
		}
		rec := domain.Record{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Image:       a.Image,
			SourceName:  SourceName,
		}
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			rec.PublishedAt = t
		} else {
			s.logger.Debug("unparseable publish date", "url", a.URL, "date", a.PublishedAt)
		}
		records = append(records, rec)
	}
	return records, nil
}
