package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/katchitechstudio/habersel-backend/internal/config"
	"github.com/katchitechstudio/habersel-backend/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// IngestAPI is the slice of the ingest service the HTTP layer reads.
type IngestAPI interface {
	UpdateAll(ctx context.Context, allowed []string) []domain.IngestStats
	Latest(ctx context.Context, limit int) ([]domain.Article, error)
	ByCategory(ctx context.Context, category string, limit, offset int) ([]domain.Article, error)
	Categories() []string
	Status(ctx context.Context) (*domain.SystemStatus, error)
}

// SlotRunner triggers scheduled slots from the cron endpoint.
type SlotRunner interface {
	Trigger(ctx context.Context) domain.SlotResult
}

type Server struct {
	router    *chi.Mux
	ingest    IngestAPI
	scheduler SlotRunner
	logger    *slog.Logger
	config    config.ServerConfig
}

func New(ingest IngestAPI, scheduler SlotRunner, logger *slog.Logger, cfg config.ServerConfig) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		ingest:    ingest,
		scheduler: scheduler,
		logger:    logger,
		config:    cfg,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Get("/cron", s.handleCron)

	s.router.Route("/api/news", func(r chi.Router) {
		r.Get("/latest", s.handleLatest)
		r.Get("/category/{category}", s.handleCategory)
		r.Get("/categories", s.handleCategories)
		r.Get("/status", s.handleStatus)
		r.Get("/update", s.handleManualUpdate)
		r.Post("/update", s.handleManualUpdate)
	})

	s.router.Get("/rss.xml", s.handleRSS)

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

// handleCron is the external scheduler's entry point. It always answers
// 200 so the upstream cron never retries on business-level outcomes;
// what actually happened is in the results payload.
func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r.URL.Query().Get("key")) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	result := s.scheduler.Trigger(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"hour":      time.Now().UTC().Hour(),
		"results":   []string{formatSlotResult(result)},
		"detail":    result,
	})
}

// formatSlotResult renders one slot outcome for cron logs.
func formatSlotResult(r domain.SlotResult) string {
	switch r.Status {
	case domain.SlotRan:
		return r.Slot + " ✅"
	case domain.SlotSkippedWrongTime, domain.SlotSkippedAlreadyRan:
		return r.Slot + " ⏭️"
	default:
		return r.Slot + " ❌"
	}
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)

	articles, err := s.ingest.Latest(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list latest articles", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(articles),
		"articles": articleList(articles),
	})
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	limit := queryInt(r, "limit", defaultPageSize)
	offset := queryInt(r, "offset", 0)

	articles, err := s.ingest.ByCategory(r.Context(), category, limit, offset)
	if err != nil {
		s.logger.Error("failed to list category", "category", category, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"count":    len(articles),
		"articles": articleList(articles),
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": s.ingest.Categories()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.ingest.Status(r.Context())
	if err != nil {
		s.logger.Error("failed to build status", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleManualUpdate forces a full ingest pass outside the slot
// schedule. Guarded by the same secret as /cron.
func (s *Server) handleManualUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r.URL.Query().Get("key")) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	s.logger.Info("manual update triggered", "remote", r.RemoteAddr)
	results := s.ingest.UpdateAll(r.Context(), nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"results": results,
	})
}

func (s *Server) authorized(key string) bool {
	if s.config.CronSecret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.config.CronSecret)) == 1
}

// articleList keeps JSON output as [] instead of null for empty pages.
func articleList(articles []domain.Article) []domain.Article {
	if articles == nil {
		return []domain.Article{}
	}
	return articles
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	if name == "limit" && (n == 0 || n > maxPageSize) {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
