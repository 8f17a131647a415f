package currents

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
	SourceID   = "currents"
	SourceName = "Currents"

	defaultBaseURL = "https://api.currentsapi.services/v1"

	// Currents formats published as "2006-01-02 15:04:05 -0700".
	publishedLayout = "2006-01-02 15:04:05 -0700"
)

type Config struct {
	APIKey   string
	BaseURL  string
	Language string
	Timeout  time.Duration
}

// Source fetches latest news from the Currents API. The API has no limit
// parameter, so the limit is applied client-side.
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
	q.Set("language", s.language)
	q.Set("apiKey", s.apiKey)

	var resp apiResponse
	if err := source.GetJSON(ctx, s.httpClient, SourceID, s.baseURL+"/latest-news?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, limit)
	for _, n := range resp.News {
		if len(records) >= limit {
			break
		}
		if n.Title == "" || n.URL == "" {
			continue
		}
		rec := domain.Record{
			Title:       n.Title,
			Description: n.Description,
			URL:         n.URL,
			Image:       n.Image,
			SourceName:  SourceName,
		}
		if t, err := time.Parse(publishedLayout, n.Published); err == nil {
			rec.PublishedAt = t
		}
		records = append(records, rec)
	}
	return records, nil
}
