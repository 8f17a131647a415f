package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/katchitechstudio/habersel-backend/internal/config"
	"github.com/katchitechstudio/habersel-backend/internal/domain"
	"github.com/katchitechstudio/habersel-backend/internal/publisher"
)

const maxBodySize = 2 << 20

// Browser user agents rotated per request. News sites routinely 403
// anything that identifies as a bot.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

const robotsUserAgent = "HaberselBot"

type ArticleStore interface {
	Unscraped(ctx context.Context, limit, blacklistAfter int) ([]domain.Article, error)
	UpdateContent(ctx context.Context, id int64, content string, image *string) error
	MarkQuarantined(ctx context.Context, url string) error
}

type BlacklistStore interface {
	Increment(ctx context.Context, url, reason string) (int, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, article *domain.Article, action string) error
}

// Scraper enriches stored articles with full page content. Batches run
// on a bounded worker pool with a politeness delay before every fetch;
// repeat offenders end up on the blacklist and their pending articles
// get quarantined.
type Scraper struct {
	articles  ArticleStore
	blacklist BlacklistStore
	tx        TransactionManager
	publisher Publisher
	client    *http.Client
	robots    *robotsCache
	logger    *slog.Logger
	config    config.ScrapeConfig

	wg sync.WaitGroup
}

func New(
	articles ArticleStore,
	blacklist BlacklistStore,
	tx TransactionManager,
	pub Publisher,
	logger *slog.Logger,
	cfg config.ScrapeConfig,
) *Scraper {
	client := &http.Client{Timeout: cfg.Timeout}
	return &Scraper{
		articles:  articles,
		blacklist: blacklist,
		tx:        tx,
		publisher: pub,
		client:    client,
		robots:    newRobotsCache(client, robotsUserAgent),
		logger:    logger,
		config:    cfg,
	}
}

// Dispatch schedules a scraping batch in the background. Callers never
// wait on scraping; ingest latency stays independent of page fetches.
func (s *Scraper) Dispatch(ctx context.Context, limit int) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunBatch(ctx, limit)
	}()
}

// Wait blocks until every dispatched batch has finished. Used on
// shutdown.
func (s *Scraper) Wait() {
	s.wg.Wait()
}

// RunBatch selects up to limit scrape candidates and works through them
// on the configured pool.
func (s *Scraper) RunBatch(ctx context.Context, limit int) domain.ScrapeStats {
	start := time.Now()
	stats := domain.ScrapeStats{}

	articles, err := s.articles.Unscraped(ctx, limit, s.config.BlacklistAfter)
	if err != nil {
		s.logger.Error("failed to select scrape candidates", "error", err)
		return stats
	}
	stats.Selected = len(articles)
	if len(articles) == 0 {
		return stats
	}

	s.logger.Info("scraping batch started", "selected", len(articles), "workers", s.config.Workers)

	var mu sync.Mutex
	jobs := make(chan domain.Article)
	var wg sync.WaitGroup

	for range s.config.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for article := range jobs {
				if !s.politeDelay(ctx) {
					return
				}
				scraped, blacklisted := s.scrapeOne(ctx, article)
				mu.Lock()
				switch {
				case scraped:
					stats.Scraped++
				case blacklisted:
					stats.Failed++
					stats.Blacklisted++
				default:
					stats.Failed++
				}
				mu.Unlock()
			}
		}()
	}

	for _, article := range articles {
		select {
		case jobs <- article:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	stats.Duration = time.Since(start)
	s.logger.Info("scraping batch finished",
		"selected", stats.Selected,
		"scraped", stats.Scraped,
		"failed", stats.Failed,
		"blacklisted", stats.Blacklisted,
		"duration", stats.Duration,
	)
	return stats
}

// politeDelay sleeps a random interval between the configured bounds.
// Returns false if the context expired while waiting.
func (s *Scraper) politeDelay(ctx context.Context) bool {
	delay := s.config.MinDelay
	if spread := s.config.MaxDelay - s.config.MinDelay; spread > 0 {
		delay += rand.N(spread)
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

func (s *Scraper) scrapeOne(ctx context.Context, article domain.Article) (scraped, blacklisted bool) {
	logger := s.logger.With("url", article.URL, "article_id", article.ID)

	if !s.robots.allowed(ctx, article.URL) {
		logger.Info("scrape disallowed by robots.txt")
		return false, s.recordFailure(ctx, article, "robots_disallowed")
	}

	body, err := s.fetchPage(ctx, article.URL)
	if err != nil {
		logger.Warn("page fetch failed", "error", err)
		return false, s.recordFailure(ctx, article, err.Error())
	}

	text, image, err := extractReadability(body, article.URL)
	if err != nil {
		logger.Debug("readability pass failed", "error", err)
	}

	// A thin readability result usually means a JS-heavy layout; the
	// selector walk over the raw document often does better there.
	if len(text) < s.config.Stage2Threshold {
		if fallback, err := extractSelectors(body, s.config.MinContentLength); err == nil && len(fallback) > len(text) {
			text = fallback
		}
	}

	if len(text) < s.config.MinContentLength {
		logger.Info("no usable content extracted", "length", len(text))
		return false, s.recordFailure(ctx, article, "no_content")
	}

	var imagePtr *string
	if image != "" {
		imagePtr = &image
	}
	if err := s.articles.UpdateContent(ctx, article.ID, text, imagePtr); err != nil {
		logger.Error("failed to store scraped content", "error", err)
		return false, false
	}

	s.publishEnriched(ctx, article, text, imagePtr)
	logger.Debug("article scraped", "length", len(text))
	return true, false
}

func (s *Scraper) fetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("bad_url")
	}
	req.Header.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch_failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http_%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("read_failed")
	}
	return string(body), nil
}

// recordFailure bumps the url's blacklist counter and, once the
// threshold is hit, quarantines its pending articles in the same
// transaction. Returns whether the url just crossed the threshold.
func (s *Scraper) recordFailure(ctx context.Context, article domain.Article, reason string) bool {
	var exhausted bool
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		count, err := s.blacklist.Increment(txCtx, article.URL, reason)
		if err != nil {
			return err
		}
		if count < s.config.BlacklistAfter {
			return nil
		}
		exhausted = true
		return s.articles.MarkQuarantined(txCtx, article.URL)
	})
	if err != nil {
		s.logger.Error("failed to record scrape failure", "url", article.URL, "error", err)
		return false
	}
	if exhausted {
		s.logger.Warn("url blacklisted", "url", article.URL, "reason", reason)
	}
	return exhausted
}

func (s *Scraper) publishEnriched(ctx context.Context, article domain.Article, content string, image *string) {
	if s.publisher == nil {
		return
	}

	article.FullContent = &content
	article.ContentState = domain.ContentScraped
	if image != nil {
		article.Image = image
	}
	if err := s.publisher.Publish(ctx, &article, publisher.ActionEnriched); err != nil {
		s.logger.Warn("failed to publish enriched event", "url", article.URL, "error", err)
	}
}
