package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katchitechstudio/habersel-backend/internal/config"
	"github.com/katchitechstudio/habersel-backend/internal/domain"
)

type fakeIngester struct {
	updateCalls  int
	updateResult []domain.IngestStats
	secondResult []domain.IngestStats
	allowedSeen  [][]string
	cleanupN     int64
	cleanupErr   error
}

func (f *fakeIngester) UpdateAll(_ context.Context, allowed []string) []domain.IngestStats {
	f.updateCalls++
	f.allowedSeen = append(f.allowedSeen, allowed)
	if f.updateCalls > 1 && f.secondResult != nil {
		return f.secondResult
	}
	return f.updateResult
}

func (f *fakeIngester) Cleanup(context.Context) (int64, error) {
	return f.cleanupN, f.cleanupErr
}

type fakeDispatcher struct {
	dispatched []int
}

func (f *fakeDispatcher) Dispatch(_ context.Context, limit int) {
	f.dispatched = append(f.dispatched, limit)
}

type fakeMarkers struct {
	claimed map[string]bool
	err     error
}

func (f *fakeMarkers) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeMarkers) CheckAndSet(_ context.Context, slot, date string, _ int) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	key := slot + "|" + date
	if f.claimed[key] {
		return false, nil
	}
	if f.claimed == nil {
		f.claimed = make(map[string]bool)
	}
	f.claimed[key] = true
	return true, nil
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Timezone: "Europe/Istanbul",
		Slots: map[string]config.SlotConfig{
			"morning": {Hour: 8, Kind: "ingest", ScrapeBatch: 15},
			"noon":    {Hour: 12, Kind: "ingest", Sources: []string{"gnews"}, ScrapeBatch: 15},
			"cleanup": {Hour: 3, Kind: "cleanup"},
		},
		RetryAfter: time.Millisecond,
		Interval:   time.Hour,
	}
}

func newTestScheduler(t *testing.T, ingester *fakeIngester, dispatcher *fakeDispatcher, markers *fakeMarkers) *Scheduler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s, err := New(ingester, dispatcher, markers, logger, testSchedulerConfig())
	require.NoError(t, err)

	s.sleep = func(context.Context, time.Duration) bool { return true }
	return s
}

// atLocalHour pins the scheduler clock to a given Istanbul wall-clock hour.
func atLocalHour(s *Scheduler, hour int) {
	s.now = func() time.Time {
		return time.Date(2026, 9, 1, hour, 30, 0, 0, s.location)
	}
}

func saved(n int) []domain.IngestStats {
	return []domain.IngestStats{{Category: "technology", Fetched: n + 1, Saved: n}}
}

func TestRunSlot_Runs(t *testing.T) {
	ingester := &fakeIngester{updateResult: saved(3)}
	dispatcher := &fakeDispatcher{}
	s := newTestScheduler(t, ingester, dispatcher, &fakeMarkers{})
	atLocalHour(s, 8)

	result := s.RunSlot(context.Background(), "morning")

	assert.Equal(t, domain.SlotRan, result.Status)
	assert.Equal(t, 1, ingester.updateCalls)
	assert.Equal(t, []int{15}, dispatcher.dispatched)
}

func TestRunSlot_WrongHourSkips(t *testing.T) {
	ingester := &fakeIngester{updateResult: saved(3)}
	s := newTestScheduler(t, ingester, &fakeDispatcher{}, &fakeMarkers{})
	atLocalHour(s, 9)

	result := s.RunSlot(context.Background(), "morning")

	assert.Equal(t, domain.SlotSkippedWrongTime, result.Status)
	assert.Zero(t, ingester.updateCalls)
}

func TestRunSlot_SecondTriggerSameDaySkips(t *testing.T) {
	ingester := &fakeIngester{updateResult: saved(3)}
	s := newTestScheduler(t, ingester, &fakeDispatcher{}, &fakeMarkers{})
	atLocalHour(s, 8)

	first := s.RunSlot(context.Background(), "morning")
	second := s.RunSlot(context.Background(), "morning")

	assert.Equal(t, domain.SlotRan, first.Status)
	assert.Equal(t, domain.SlotSkippedAlreadyRan, second.Status)
	assert.Equal(t, 1, ingester.updateCalls)
}

func TestRunSlot_RetriesOnceThenFails(t *testing.T) {
	ingester := &fakeIngester{updateResult: []domain.IngestStats{{Category: "technology"}}}
	s := newTestScheduler(t, ingester, &fakeDispatcher{}, &fakeMarkers{})
	atLocalHour(s, 8)

	result := s.RunSlot(context.Background(), "morning")

	assert.Equal(t, domain.SlotFailed, result.Status)
	assert.Equal(t, 2, ingester.updateCalls)
	assert.NotEmpty(t, result.Error)
}

func TestRunSlot_RetrySucceeds(t *testing.T) {
	ingester := &fakeIngester{
		updateResult: []domain.IngestStats{{Category: "technology"}},
		secondResult: saved(2),
	}
	dispatcher := &fakeDispatcher{}
	s := newTestScheduler(t, ingester, dispatcher, &fakeMarkers{})
	atLocalHour(s, 8)

	result := s.RunSlot(context.Background(), "morning")

	assert.Equal(t, domain.SlotRan, result.Status)
	assert.Equal(t, 2, ingester.updateCalls)
	assert.Equal(t, []int{15}, dispatcher.dispatched)
}

func TestRunSlot_PassesSlotSources(t *testing.T) {
	ingester := &fakeIngester{updateResult: saved(1)}
	s := newTestScheduler(t, ingester, &fakeDispatcher{}, &fakeMarkers{})
	atLocalHour(s, 12)

	result := s.RunSlot(context.Background(), "noon")

	assert.Equal(t, domain.SlotRan, result.Status)
	require.Len(t, ingester.allowedSeen, 1)
	assert.Equal(t, []string{"gnews"}, ingester.allowedSeen[0])
}

func TestRunSlot_Cleanup(t *testing.T) {
	ingester := &fakeIngester{cleanupN: 42}
	s := newTestScheduler(t, ingester, &fakeDispatcher{}, &fakeMarkers{})
	atLocalHour(s, 3)

	result := s.RunSlot(context.Background(), "cleanup")

	assert.Equal(t, domain.SlotRan, result.Status)
	assert.Equal(t, int64(42), result.Deleted)
	assert.Zero(t, ingester.updateCalls)
}

func TestRunSlot_CleanupFailure(t *testing.T) {
	ingester := &fakeIngester{cleanupErr: errors.New("db down")}
	s := newTestScheduler(t, ingester, &fakeDispatcher{}, &fakeMarkers{})
	atLocalHour(s, 3)

	result := s.RunSlot(context.Background(), "cleanup")

	assert.Equal(t, domain.SlotFailed, result.Status)
	assert.Equal(t, "db down", result.Error)
}

func TestRunSlot_MarkerErrorFails(t *testing.T) {
	s := newTestScheduler(t, &fakeIngester{updateResult: saved(1)}, &fakeDispatcher{}, &fakeMarkers{err: errors.New("db down")})
	atLocalHour(s, 8)

	result := s.RunSlot(context.Background(), "morning")

	assert.Equal(t, domain.SlotFailed, result.Status)
}

func TestRunSlot_UnknownSlot(t *testing.T) {
	s := newTestScheduler(t, &fakeIngester{}, &fakeDispatcher{}, &fakeMarkers{})

	result := s.RunSlot(context.Background(), "midnight")

	assert.Equal(t, domain.SlotFailed, result.Status)
}

func TestTrigger_ResolvesHourToSlot(t *testing.T) {
	ingester := &fakeIngester{updateResult: saved(2)}
	s := newTestScheduler(t, ingester, &fakeDispatcher{}, &fakeMarkers{})
	atLocalHour(s, 8)

	result := s.Trigger(context.Background())

	assert.Equal(t, "morning", result.Slot)
	assert.Equal(t, domain.SlotRan, result.Status)
}

func TestTrigger_NoSlotForHour(t *testing.T) {
	ingester := &fakeIngester{updateResult: saved(2)}
	s := newTestScheduler(t, ingester, &fakeDispatcher{}, &fakeMarkers{})
	atLocalHour(s, 15)

	result := s.Trigger(context.Background())

	assert.Equal(t, domain.SlotSkippedWrongTime, result.Status)
	assert.Zero(t, ingester.updateCalls)
}

func TestResolveCurrent_UsesUTCHours(t *testing.T) {
	s := newTestScheduler(t, &fakeIngester{}, &fakeDispatcher{}, &fakeMarkers{})

	// Istanbul is UTC+3 year-round, so the 08:00 local slot sits at 05:00 UTC.
	name, ok := s.ResolveCurrent(5)
	require.True(t, ok)
	assert.Equal(t, "morning", name)

	_, ok = s.ResolveCurrent(6)
	assert.False(t, ok)
}
