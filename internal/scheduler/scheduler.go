package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/katchitechstudio/habersel-backend/internal/config"
	"github.com/katchitechstudio/habersel-backend/internal/domain"
)

const slotTimeout = 5 * time.Minute

// Ingester runs the fetch-dedup-save pipeline and retention cleanup.
type Ingester interface {
	UpdateAll(ctx context.Context, allowed []string) []domain.IngestStats
	Cleanup(ctx context.Context) (int64, error)
}

// Dispatcher queues background content scraping after an ingest run.
type Dispatcher interface {
	Dispatch(ctx context.Context, limit int)
}

// RunMarkerStore provides the at-most-once-per-day claim for a slot.
type RunMarkerStore interface {
	CheckAndSet(ctx context.Context, slot, date string, hour int) (bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// slot is a resolved schedule entry. Hour is in UTC; the local
// wall-clock hour from config is converted once at construction so DST
// shifts only take effect on restart.
type slot struct {
	name        string
	hourUTC     int
	hourLocal   int
	kind        string
	sources     []string
	scrapeBatch int
}

// Scheduler maps trigger hours to configured slots and runs each slot at
// most once per calendar day. Triggers come from the cron endpoint or,
// when configured, an internal ticker.
type Scheduler struct {
	ingester   Ingester
	dispatcher Dispatcher
	markers    RunMarkerStore
	slots      []slot
	location   *time.Location
	retryAfter time.Duration
	interval   time.Duration
	logger     *slog.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) bool
}

func New(
	ingester Ingester,
	dispatcher Dispatcher,
	markers RunMarkerStore,
	logger *slog.Logger,
	cfg config.SchedulerConfig,
) (*Scheduler, error) {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	slots := make([]slot, 0, len(cfg.Slots))
	for name, sc := range cfg.Slots {
		slots = append(slots, slot{
			name:        name,
			hourUTC:     localHourToUTC(sc.Hour, location),
			hourLocal:   sc.Hour,
			kind:        sc.Kind,
			sources:     sc.Sources,
			scrapeBatch: sc.ScrapeBatch,
		})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].hourLocal < slots[j].hourLocal })

	return &Scheduler{
		ingester:   ingester,
		dispatcher: dispatcher,
		markers:    markers,
		slots:      slots,
		location:   location,
		retryAfter: cfg.RetryAfter,
		interval:   cfg.Interval,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepCtx,
	}, nil
}

// localHourToUTC converts a wall-clock hour in loc to the UTC hour it
// falls on today.
func localHourToUTC(hour int, loc *time.Location) int {
	now := time.Now().In(loc)
	local := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, loc)
	return local.UTC().Hour()
}

// ResolveCurrent returns the slot scheduled for the given UTC hour, if any.
func (s *Scheduler) ResolveCurrent(hourUTC int) (string, bool) {
	for _, sl := range s.slots {
		if sl.hourUTC == hourUTC {
			return sl.name, true
		}
	}
	return "", false
}

// Trigger resolves the current hour to a slot and runs it. An hour with
// no slot scheduled is a skip, not an error.
func (s *Scheduler) Trigger(ctx context.Context) domain.SlotResult {
	hourUTC := s.now().UTC().Hour()
	name, ok := s.ResolveCurrent(hourUTC)
	if !ok {
		s.logger.Info("no slot scheduled for current hour", "hour_utc", hourUTC)
		return domain.SlotResult{Slot: "none", Status: domain.SlotSkippedWrongTime}
	}
	return s.RunSlot(ctx, name)
}

// RunSlot executes one named slot: claim today's marker, then ingest (or
// clean up) with one retry on total failure.
func (s *Scheduler) RunSlot(ctx context.Context, name string) domain.SlotResult {
	sl, ok := s.findSlot(name)
	if !ok {
		return domain.SlotResult{Slot: name, Status: domain.SlotFailed, Error: "unknown slot"}
	}

	now := s.now().In(s.location)
	if now.Hour() != sl.hourLocal {
		s.logger.Info("slot triggered outside its hour",
			"slot", name, "scheduled_hour", sl.hourLocal, "current_hour", now.Hour())
		return domain.SlotResult{Slot: name, Status: domain.SlotSkippedWrongTime}
	}

	date := now.Format("2006-01-02")
	claimed, err := s.markers.CheckAndSet(ctx, name, date, now.Hour())
	if err != nil {
		return domain.SlotResult{Slot: name, Status: domain.SlotFailed, Error: err.Error()}
	}
	if !claimed {
		s.logger.Info("slot already ran today", "slot", name, "date", date)
		return domain.SlotResult{Slot: name, Status: domain.SlotSkippedAlreadyRan}
	}

	s.logger.Info("running slot", "slot", name, "kind", sl.kind)

	runCtx, cancel := context.WithTimeout(ctx, slotTimeout)
	defer cancel()

	if sl.kind == "cleanup" {
		return s.runCleanup(runCtx, sl)
	}
	return s.runIngest(runCtx, sl)
}

func (s *Scheduler) runIngest(ctx context.Context, sl slot) domain.SlotResult {
	result := domain.SlotResult{Slot: sl.name}

	result.Categories = s.ingester.UpdateAll(ctx, sl.sources)
	if totalFetched(result.Categories) == 0 {
		// Nothing came back from any source. One retry covers transient
		// upstream hiccups; a second empty run is a real failure.
		s.logger.Warn("ingest run produced nothing, retrying once",
			"slot", sl.name, "retry_after", s.retryAfter)
		if !s.sleep(ctx, s.retryAfter) {
			result.Status = domain.SlotFailed
			result.Error = ctx.Err().Error()
			return result
		}
		result.Categories = s.ingester.UpdateAll(ctx, sl.sources)
	}

	if totalFetched(result.Categories) == 0 {
		result.Status = domain.SlotFailed
		result.Error = "no source produced records"
		return result
	}

	if sl.scrapeBatch > 0 && s.dispatcher != nil {
		s.dispatcher.Dispatch(context.WithoutCancel(ctx), sl.scrapeBatch)
	}

	result.Status = domain.SlotRan
	return result
}

func (s *Scheduler) runCleanup(ctx context.Context, sl slot) domain.SlotResult {
	deleted, err := s.ingester.Cleanup(ctx)
	if err != nil {
		s.logger.Error("cleanup failed", "slot", sl.name, "error", err)
		return domain.SlotResult{Slot: sl.name, Status: domain.SlotFailed, Error: err.Error()}
	}

	// Markers only matter for same-day idempotence; a week of history is
	// plenty for debugging.
	if _, err := s.markers.DeleteOlderThan(ctx, s.now().AddDate(0, 0, -7)); err != nil {
		s.logger.Warn("failed to prune run markers", "error", err)
	}

	s.logger.Info("cleanup finished", "slot", sl.name, "deleted", deleted)
	return domain.SlotResult{Slot: sl.name, Status: domain.SlotRan, Deleted: deleted}
}

// Start runs the internal ticker loop for deployments without an
// external cron. Each tick triggers whatever slot matches the hour; the
// run-marker claim keeps double execution out.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "slots", len(s.slots))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Trigger(ctx)
		}
	}
}

func (s *Scheduler) findSlot(name string) (slot, bool) {
	for _, sl := range s.slots {
		if sl.name == name {
			return sl, true
		}
	}
	return slot{}, false
}

func totalFetched(stats []domain.IngestStats) int {
	n := 0
	for _, st := range stats {
		n += st.Fetched
	}
	return n
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
