package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/katchitechstudio/habersel-backend/internal/domain"
)

const window = 24 * time.Hour

// Entry is the persisted budget state for one source.
type Entry struct {
	Source     string    `db:"source"`
	Limit      int       `db:"daily_limit"`
	Used       int       `db:"used"`
	ErrorCount int       `db:"error_count"`
	Priority   int       `db:"priority"`
	ResetAt    time.Time `db:"reset_at"`
}

// Store persists quota entries across restarts.
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, e Entry) error
}

// Limit configures one source's budget and fallback rank.
type Limit struct {
	Daily    int
	Priority int
}

// Ledger tracks per-source rolling-window request budgets. All reads go
// through the in-memory state; every mutation is written through to the
// store so the counters survive restarts.
type Ledger struct {
	mu      sync.Mutex
	store   Store
	entries map[string]Entry
	now     func() time.Time
	logger  *slog.Logger
}

func NewLedger(store Store, limits map[string]Limit, logger *slog.Logger) *Ledger {
	entries := make(map[string]Entry, len(limits))
	for source, l := range limits {
		entries[source] = Entry{Source: source, Limit: l.Daily, Priority: l.Priority}
	}
	return &Ledger{
		store:   store,
		entries: entries,
		now:     time.Now,
		logger:  logger,
	}
}

// Restore merges persisted usage into the configured entries. Limits and
// priorities always come from config; only counters and reset times are
// taken from the store.
func (l *Ledger) Restore(ctx context.Context) error {
	persisted, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load quota entries: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range persisted {
		e, ok := l.entries[p.Source]
		if !ok {
			continue // source no longer configured
		}
		e.Used = p.Used
		e.ErrorCount = p.ErrorCount
		e.ResetAt = p.ResetAt
		l.entries[p.Source] = e
	}
	return nil
}

// CanConsume reports whether n more calls fit in the source's current
// window. It never mutates state; an elapsed window counts as zero usage.
func (l *Ledger) CanConsume(source string, n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[source]
	if !ok {
		return false
	}

	used := e.Used
	if !e.ResetAt.IsZero() && !l.now().Before(e.ResetAt) {
		used = 0
	}
	return used+n <= e.Limit
}

// Consume records n attempted calls against the source. The window is
// rolled first: on first use, or once reset_at has passed, the counters
// restart and a fresh 24h window begins.
func (l *Ledger) Consume(ctx context.Context, source string, n int, success bool) {
	l.mu.Lock()
	e, ok := l.entries[source]
	if !ok {
		l.mu.Unlock()
		return
	}

	now := l.now()
	if e.ResetAt.IsZero() || !now.Before(e.ResetAt) {
		e.Used = 0
		e.ErrorCount = 0
		e.ResetAt = now.Add(window)
	}

	e.Used += n
	if !success {
		e.ErrorCount++
	}
	l.entries[source] = e
	l.mu.Unlock()

	if err := l.store.Save(ctx, e); err != nil {
		l.logger.Warn("failed to persist quota entry", "source", source, "error", err)
	}
}

// Priority returns the fallback rank for a source; unknown sources sort last.
func (l *Ledger) Priority(source string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[source]; ok {
		return e.Priority
	}
	return int(^uint(0) >> 1)
}

// Snapshot returns a point-in-time view of every source's budget, ordered
// by priority. Elapsed windows read as fully available.
func (l *Ledger) Snapshot() []domain.QuotaStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	out := make([]domain.QuotaStats, 0, len(l.entries))
	for _, e := range l.entries {
		used, errs := e.Used, e.ErrorCount
		if !e.ResetAt.IsZero() && !now.Before(e.ResetAt) {
			used, errs = 0, 0
		}
		out = append(out, domain.QuotaStats{
			Source:     e.Source,
			Limit:      e.Limit,
			Used:       used,
			Remaining:  e.Limit - used,
			ErrorCount: errs,
			ResetAt:    e.ResetAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return l.entries[out[i].Source].Priority < l.entries[out[j].Source].Priority
	})
	return out
}
