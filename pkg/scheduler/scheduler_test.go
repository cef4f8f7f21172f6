package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pario-ai/tickerpulse/pkg/budget"
	"github.com/pario-ai/tickerpulse/pkg/models"
)

var start = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type harness struct {
	s      *Scheduler
	clock  *ManualClock
	store  *budget.MemoryStore
	mu     sync.Mutex
	events []Event
}

func (h *harness) recorded(kind EventKind) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Event
	for _, ev := range h.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// newHarness builds a scheduler with 20 rpm (3s pacing) on a manual clock.
func newHarness(t *testing.T, pool []string, limit int) *harness {
	t.Helper()
	return newHarnessWithStore(t, pool, limit, budget.NewMemoryStore())
}

func newHarnessWithStore(t *testing.T, pool []string, limit int, store *budget.MemoryStore) *harness {
	t.Helper()
	h := &harness{clock: NewManualClock(start), store: store}
	s, err := New(context.Background(), Options{
		Models:     pool,
		DailyLimit: limit,
		Store:      store,
		Clock:      h.clock,
		OnEvent: func(ev Event) {
			h.mu.Lock()
			h.events = append(h.events, ev)
			h.mu.Unlock()
		},
	})
	require.NoError(t, err)
	h.s = s
	return h
}

func acquire(t *testing.T, s *Scheduler) string {
	t.Helper()
	m, ok := s.Acquire()
	require.True(t, ok, "expected a model")
	return m
}

func TestNewValidation(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Options{DailyLimit: 10})
	require.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = New(ctx, Options{Models: []string{"a"}, DailyLimit: 0})
	require.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = New(ctx, Options{Models: []string{"a", ""}, DailyLimit: 1})
	require.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = New(ctx, Options{Models: []string{"a"}, DailyLimit: 1, RequestsPerMinute: -1})
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestPacingInterval(t *testing.T) {
	h := newHarness(t, []string{"a"}, 10)
	require.Equal(t, 3*time.Second, h.s.PacingInterval())

	s, err := New(context.Background(), Options{Models: []string{"a"}, DailyLimit: 1, RequestsPerMinute: 60})
	require.NoError(t, err)
	require.Equal(t, time.Second, s.PacingInterval())
}

func TestRoundRobinCyclesInPoolOrder(t *testing.T) {
	pool := []string{"m1", "m2", "m3", "m4"}
	h := newHarness(t, pool, 100)

	var got []string
	for i := 0; i < 3*len(pool); i++ {
		got = append(got, acquire(t, h.s))
	}
	require.Equal(t, append(append(append([]string{}, pool...), pool...), pool...), got)
}

func TestScenarioPacingLap(t *testing.T) {
	h := newHarness(t, []string{"a", "b", "c"}, 100)

	for _, want := range []string{"a", "b", "c"} {
		m := acquire(t, h.s)
		require.Equal(t, want, m)
		require.NoError(t, h.s.ReportSuccess(m))
	}

	m, ok := h.s.Acquire()
	require.False(t, ok)
	require.Empty(t, m)

	h.clock.Advance(3100 * time.Millisecond)
	require.Equal(t, "a", acquire(t, h.s))
}

func TestPacedModelIsSkipped(t *testing.T) {
	h := newHarness(t, []string{"a", "b", "c"}, 100)

	require.Equal(t, "a", acquire(t, h.s))
	require.NoError(t, h.s.ReportSuccess("a"))
	require.Equal(t, "b", acquire(t, h.s))
	require.Equal(t, "c", acquire(t, h.s))

	// "a" is next in rotation but still inside its pacing window.
	h.clock.Advance(time.Second)
	require.Equal(t, "b", acquire(t, h.s))

	h.clock.Advance(2 * time.Second)
	require.Equal(t, "c", acquire(t, h.s))
	require.Equal(t, "a", acquire(t, h.s))
}

func TestScenarioRateLimitedModelIsAvoided(t *testing.T) {
	h := newHarness(t, []string{"a", "b"}, 100)
	h.s.ReportRateLimited("b", 10*time.Second)

	// Poll every 500ms until the cool-down ends; "b" must never come back early.
	for elapsed := time.Duration(0); elapsed < 10*time.Second; elapsed += 500 * time.Millisecond {
		m, ok := h.s.Acquire()
		if ok {
			require.Equal(t, "a", m, "at %v", elapsed)
		}
		h.clock.Advance(500 * time.Millisecond)
	}

	// Exactly 10s have passed: "b" is usable again.
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		seen[acquire(t, h.s)] = true
	}
	require.True(t, seen["b"])
}

func TestRateLimitedReturnsPromptlyAfterDuration(t *testing.T) {
	h := newHarness(t, []string{"solo"}, 100)
	h.s.ReportRateLimited("solo", 5*time.Second)

	h.clock.Advance(4999 * time.Millisecond)
	_, ok := h.s.Acquire()
	require.False(t, ok)

	h.clock.Advance(time.Millisecond)
	require.Equal(t, "solo", acquire(t, h.s))
	require.Empty(t, h.s.Snapshot().Cooldowns)
}

func TestDefaultCooldownIsPacingInterval(t *testing.T) {
	h := newHarness(t, []string{"a"}, 100)
	h.s.ReportRateLimited("a", 0)

	evs := h.recorded(EventCooldown)
	require.Len(t, evs, 1)
	require.Equal(t, "a", evs[0].Model)
	require.Equal(t, 3*time.Second, evs[0].Duration)

	h.clock.Advance(2900 * time.Millisecond)
	_, ok := h.s.Acquire()
	require.False(t, ok)

	h.clock.Advance(100 * time.Millisecond)
	require.Equal(t, "a", acquire(t, h.s))
}

func TestIdleWaitIsBounded(t *testing.T) {
	h := newHarness(t, []string{"a", "b"}, 100)

	// Soonest availability 3s away: the wait is capped at 1s.
	require.NoError(t, h.s.ReportSuccess(acquire(t, h.s)))
	require.NoError(t, h.s.ReportSuccess(acquire(t, h.s)))
	_, ok := h.s.Acquire()
	require.False(t, ok)

	// Soonest availability 10ms away: the wait is raised to 50ms.
	h.clock.Advance(2990 * time.Millisecond)
	h.s.ReportRateLimited("b", time.Hour)
	_, ok = h.s.Acquire()
	require.False(t, ok)

	require.Equal(t, []time.Duration{time.Second, 50 * time.Millisecond}, h.clock.Waits())
}

func TestRemainingBudgetDecrements(t *testing.T) {
	h := newHarness(t, []string{"a", "b"}, 3)
	require.Equal(t, 3, h.s.RemainingBudget())

	for want := 2; want >= 0; want-- {
		require.NoError(t, h.s.ReportSuccess("a"))
		require.Equal(t, want, h.s.RemainingBudget())
	}

	// Over-limit dispatches never push the remaining count below zero.
	require.NoError(t, h.s.ReportSuccess("b"))
	require.Equal(t, 0, h.s.RemainingBudget())
	require.ErrorIs(t, budget.Check(h.s), budget.ErrBudgetExceeded)

	snap := h.s.Snapshot()
	require.Equal(t, 4, snap.Total)
	require.Equal(t, 3, snap.Requests["a"])
	require.Equal(t, 1, snap.Requests["b"])
}

func TestDateBoundaryResetsBudget(t *testing.T) {
	h := newHarness(t, []string{"a", "b"}, 10)
	for i := 0; i < 4; i++ {
		require.NoError(t, h.s.ReportSuccess("a"))
	}
	require.Equal(t, 6, h.s.RemainingBudget())

	h.clock.Set(time.Date(2026, 10, 20, 0, 0, 1, 0, time.UTC))
	require.Equal(t, 10, h.s.RemainingBudget())

	snap := h.s.Snapshot()
	require.Equal(t, "2026-10-20", snap.Date)
	require.Equal(t, 0, snap.Requests["a"])
	require.Equal(t, 0, snap.Total)
	require.Len(t, h.recorded(EventBudgetReset), 1)

	stored, err := h.store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2026-10-20", stored.Date)
	require.Equal(t, 0, stored.Total)
}

func TestSuccessAfterMidnightCountsTowardNewDay(t *testing.T) {
	h := newHarness(t, []string{"a"}, 10)
	require.NoError(t, h.s.ReportSuccess("a"))

	h.clock.Set(time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC))
	require.NoError(t, h.s.ReportSuccess("a"))

	snap := h.s.Snapshot()
	require.Equal(t, "2026-10-20", snap.Date)
	require.Equal(t, 1, snap.Total)
}

func TestSetDailyLimit(t *testing.T) {
	h := newHarness(t, []string{"a"}, 100)
	for i := 0; i < 30; i++ {
		require.NoError(t, h.s.ReportSuccess("a"))
	}

	require.ErrorIs(t, h.s.SetDailyLimit(0), ErrInvalidConfiguration)
	require.ErrorIs(t, h.s.SetDailyLimit(-5), ErrInvalidConfiguration)
	require.Equal(t, 70, h.s.RemainingBudget())

	require.NoError(t, h.s.SetDailyLimit(50))
	require.Equal(t, 20, h.s.RemainingBudget())
	require.Equal(t, 30, h.s.Snapshot().Total)

	stored, err := h.store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 50, stored.Limit)
	require.Equal(t, 30, stored.Total)
}

func TestLoadsTodaysRecord(t *testing.T) {
	store := budget.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), models.BudgetRecord{
		Date:     "2026-10-19",
		Requests: map[string]int{"a": 4, "retired": 2},
		Total:    99, // inconsistent on disk; recomputed from the counters
		Limit:    500,
	}))

	h := newHarnessWithStore(t, []string{"a", "b"}, 10, store)
	snap := h.s.Snapshot()
	require.Equal(t, 6, snap.Total)
	require.Equal(t, 10, snap.Limit)
	require.Equal(t, 0, snap.Requests["b"])
	require.Equal(t, 4, h.s.RemainingBudget())

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, stored.Limit)
}

func TestStaleRecordIsReset(t *testing.T) {
	store := budget.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), models.BudgetRecord{
		Date: "2026-10-18", Requests: map[string]int{"a": 7}, Total: 7, Limit: 10,
	}))

	h := newHarnessWithStore(t, []string{"a"}, 10, store)
	require.Equal(t, 10, h.s.RemainingBudget())
	require.Len(t, h.recorded(EventBudgetReset), 1)
}

func TestLoadFailureFallsBackToFreshRecord(t *testing.T) {
	store := budget.NewMemoryStore()
	store.SetFailures(errors.New("permission denied"), nil)

	h := newHarnessWithStore(t, []string{"a"}, 10, store)
	require.Equal(t, 10, h.s.RemainingBudget())
	require.NotEmpty(t, h.recorded(EventPersistenceDegraded))
	require.Equal(t, "a", acquire(t, h.s))
}

func TestSaveFailureKeepsCounters(t *testing.T) {
	h := newHarness(t, []string{"a"}, 10)
	boom := errors.New("disk full")
	h.store.SetFailures(nil, boom)

	err := h.s.ReportSuccess("a")
	require.ErrorIs(t, err, ErrPersistenceDegraded)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 9, h.s.RemainingBudget())
	require.Len(t, h.recorded(EventPersistenceDegraded), 1)

	// Pacing was still recorded.
	_, ok := h.s.Acquire()
	require.False(t, ok)

	h.store.SetFailures(nil, nil)
	require.NoError(t, h.s.ReportSuccess("a"))
	stored, err := h.store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stored.Total)
}

func TestBudgetThresholdEvents(t *testing.T) {
	h := newHarness(t, []string{"a"}, 100)
	for i := 0; i < 100; i++ {
		require.NoError(t, h.s.ReportSuccess("a"))
	}
	// 80% warns every 50: only at 100 would it fire, but 90%+ wins there.
	require.Empty(t, h.recorded(EventBudgetWarning))
	// 90% and above: 90, 100.
	require.Len(t, h.recorded(EventBudgetCritical), 2)
}

func TestAcquireWaitReturnsWhenReady(t *testing.T) {
	h := newHarness(t, []string{"a"}, 10)
	h.clock.AutoAdvance = true
	require.NoError(t, h.s.ReportSuccess(acquire(t, h.s)))

	m, err := h.s.AcquireWait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a", m)
	require.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, h.clock.Waits())
}

func TestAcquireWaitHonorsCancellation(t *testing.T) {
	h := newHarness(t, []string{"a"}, 10)
	h.s.ReportRateLimited("a", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.s.AcquireWait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

// Acquire and ReportSuccess are not atomic as a pair: two callers can both be
// handed the same model inside one pacing interval. This is accepted behavior.
func TestKnownRaceAcquireBeforeReportSuccess(t *testing.T) {
	h := newHarness(t, []string{"only"}, 100)

	var wg sync.WaitGroup
	acquired := make(chan string, 2)
	ready := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, ok := h.s.Acquire()
			if ok {
				acquired <- m
			}
			<-ready
			if ok {
				_ = h.s.ReportSuccess(m)
			}
		}()
	}

	got := []string{<-acquired, <-acquired}
	close(ready)
	wg.Wait()

	require.Equal(t, []string{"only", "only"}, got)
	require.Equal(t, 2, h.s.Snapshot().Requests["only"])
}

func TestConcurrentReportsKeepTotalConsistent(t *testing.T) {
	pool := []string{"a", "b", "c"}
	h := newHarness(t, pool, 10000)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				m := pool[(i+j)%len(pool)]
				_, _ = h.s.Acquire()
				_ = h.s.ReportSuccess(m)
				if j%7 == 0 {
					h.s.ReportRateLimited(m, time.Millisecond)
				}
			}
		}(i)
	}
	wg.Wait()

	snap := h.s.Snapshot()
	require.Equal(t, 600, snap.Total)
	sum := 0
	for _, c := range snap.Requests {
		sum += c
	}
	require.Equal(t, snap.Total, sum)
}

func TestSnapshotSummary(t *testing.T) {
	h := newHarness(t, []string{"vendor/model-a:free", "model-b"}, 8)
	require.NoError(t, h.s.ReportSuccess("vendor/model-a:free"))
	require.NoError(t, h.s.ReportSuccess("model-b"))

	snap := h.s.Snapshot()
	require.Equal(t, "2/8 requests (25.0%)", snap.Summary())
	require.Equal(t, "Total: 2/8 requests (25.0%)\n  model-a:free: 1 requests\n  model-b: 1 requests", snap.Detailed())
}
