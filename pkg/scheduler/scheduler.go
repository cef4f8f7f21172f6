package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/tickerpulse/pkg/budget"
	"github.com/pario-ai/tickerpulse/pkg/metrics"
	"github.com/pario-ai/tickerpulse/pkg/models"
)

var (
	// ErrInvalidConfiguration is returned for an empty pool or a non-positive limit.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrPersistenceDegraded wraps a failed budget read or write. In-memory state stays valid.
	ErrPersistenceDegraded = errors.New("budget persistence degraded")
)

const (
	// DefaultRequestsPerMinute is the per-model pace of OpenRouter :free variants.
	DefaultRequestsPerMinute = 20.0

	minIdleWait = 50 * time.Millisecond
	maxIdleWait = time.Second

	storeTimeout = 2 * time.Second
	dateLayout   = "2006-01-02"
)

// Options configures a Scheduler.
type Options struct {
	Models     []string
	DailyLimit int
	// RequestsPerMinute sets the per-model pacing interval. Zero means DefaultRequestsPerMinute.
	RequestsPerMinute float64
	// Store persists the budget record. Nil keeps it in memory.
	Store   budget.Store
	Clock   Clock
	Logger  *zap.Logger
	OnEvent func(Event)
}

// Scheduler rotates requests across a pool of models.
//
// Acquire, ReportRateLimited and ReportSuccess are each atomic. The sequence
// Acquire, remote call, ReportSuccess is not: two goroutines may both pass the
// pacing check for one model before either reports success. The provider's own
// per-minute limit backstops that race.
type Scheduler struct {
	mu          sync.Mutex
	models      []string
	cursor      int
	cooldowns   map[string]time.Time
	lastSuccess map[string]time.Time
	pacing      time.Duration
	record      models.BudgetRecord

	store   budget.Store
	clock   Clock
	logger  *zap.Logger
	onEvent func(Event)
}

// New creates a Scheduler and loads today's budget record from the store.
// A store that cannot be read degrades to a fresh record; New only fails on bad options.
func New(ctx context.Context, opts Options) (*Scheduler, error) {
	if len(opts.Models) == 0 {
		return nil, fmt.Errorf("%w: model pool is empty", ErrInvalidConfiguration)
	}
	for _, m := range opts.Models {
		if m == "" {
			return nil, fmt.Errorf("%w: empty model identifier", ErrInvalidConfiguration)
		}
	}
	if opts.DailyLimit <= 0 {
		return nil, fmt.Errorf("%w: daily limit must be positive, got %d", ErrInvalidConfiguration, opts.DailyLimit)
	}
	pacing, err := pacingInterval(opts.RequestsPerMinute)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		models:      append([]string(nil), opts.Models...),
		cooldowns:   make(map[string]time.Time),
		lastSuccess: make(map[string]time.Time),
		pacing:      pacing,
		store:       opts.Store,
		clock:       opts.Clock,
		logger:      opts.Logger,
		onEvent:     opts.OnEvent,
	}
	if s.store == nil {
		s.store = budget.NewMemoryStore()
	}
	if s.clock == nil {
		s.clock = wallClock{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	events := s.load(ctx, opts.DailyLimit)
	s.emit(events...)
	metrics.BudgetRemaining.Set(float64(s.record.Remaining()))
	return s, nil
}

func pacingInterval(rpm float64) (time.Duration, error) {
	if rpm < 0 {
		return 0, fmt.Errorf("%w: requests per minute must not be negative", ErrInvalidConfiguration)
	}
	if rpm == 0 {
		rpm = DefaultRequestsPerMinute
	}
	return time.Duration(float64(time.Minute) / rpm), nil
}

// load brings s.record in line with today and limit. Called before s is shared.
func (s *Scheduler) load(ctx context.Context, limit int) []Event {
	var events []Event
	today := s.today()
	fresh := models.NewBudgetRecord(today, s.models, limit)

	rec, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, budget.ErrNoRecord):
		s.record = fresh
	case err != nil:
		metrics.PersistenceErrorsTotal.WithLabelValues("load").Inc()
		events = append(events, Event{Kind: EventPersistenceDegraded, Err: err})
		s.record = fresh
	case rec.Date != today:
		events = append(events, Event{Kind: EventBudgetReset, Used: rec.Total, Limit: limit})
		s.record = fresh
	default:
		s.record = normalize(rec, s.models)
		if s.record.Limit == limit {
			return events
		}
		s.record.Limit = limit
	}

	if err := s.save(ctx); err != nil {
		events = append(events, Event{Kind: EventPersistenceDegraded, Err: err})
	}
	return events
}

// normalize fills in missing counters and restores Total == sum(Requests).
func normalize(rec models.BudgetRecord, pool []string) models.BudgetRecord {
	out := rec.Clone()
	for _, m := range pool {
		if _, ok := out.Requests[m]; !ok {
			out.Requests[m] = 0
		}
	}
	out.Total = out.Sum()
	return out
}

// Models returns the pool in rotation order.
func (s *Scheduler) Models() []string {
	return append([]string(nil), s.models...)
}

// PacingInterval returns the minimum idle time per model between successes.
func (s *Scheduler) PacingInterval() time.Duration {
	return s.pacing
}

// Acquire returns the next usable model. When none is usable it waits briefly
// (50ms to 1s, based on the soonest availability) and returns false.
func (s *Scheduler) Acquire() (string, bool) {
	model, wait, ok := s.next()
	if ok {
		metrics.AcquireTotal.WithLabelValues("selected").Inc()
		return model, true
	}
	metrics.AcquireTotal.WithLabelValues("none").Inc()
	if wait > 0 {
		<-s.clock.After(clampWait(wait))
	}
	return "", false
}

// AcquireWait loops on model selection until one is available or ctx is done.
func (s *Scheduler) AcquireWait(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		model, wait, ok := s.next()
		if ok {
			metrics.AcquireTotal.WithLabelValues("selected").Inc()
			return model, nil
		}
		metrics.AcquireTotal.WithLabelValues("none").Inc()
		if wait <= 0 {
			wait = minIdleWait
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-s.clock.After(clampWait(wait)):
		}
	}
}

// next scans one lap from the cursor. It returns the selected model, or the
// shortest wait until some model could be ready.
func (s *Scheduler) next() (string, time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	n := len(s.models)
	soonest := time.Duration(-1)
	track := func(d time.Duration) {
		if soonest < 0 || d < soonest {
			soonest = d
		}
	}

	for i := 0; i < n; i++ {
		model := s.models[s.cursor]
		s.cursor = (s.cursor + 1) % n

		if until, ok := s.cooldowns[model]; ok {
			if now.Before(until) {
				track(until.Sub(now))
				continue
			}
			delete(s.cooldowns, model)
		}

		if last, ok := s.lastSuccess[model]; ok {
			if elapsed := now.Sub(last); elapsed < s.pacing {
				track(s.pacing - elapsed)
				continue
			}
		}

		return model, 0, true
	}
	return "", soonest, false
}

func clampWait(d time.Duration) time.Duration {
	if d < minIdleWait {
		return minIdleWait
	}
	if d > maxIdleWait {
		return maxIdleWait
	}
	return d
}

// ReportRateLimited puts model in cool-down for d. A d of zero or less means one
// pacing interval: a 429 from a paced model signals a per-minute overrun, not a ban.
func (s *Scheduler) ReportRateLimited(model string, d time.Duration) {
	if d <= 0 {
		d = s.pacing
	}
	s.mu.Lock()
	s.cooldowns[model] = s.clock.Now().Add(d)
	s.mu.Unlock()

	metrics.CooldownTotal.WithLabelValues(model).Inc()
	s.emit(Event{Kind: EventCooldown, Model: model, Duration: d})
}

// ReportSuccess records a dispatch the remote side accepted and persists the
// budget. A non-nil error wraps ErrPersistenceDegraded and is a warning only:
// counters in memory are already updated.
func (s *Scheduler) ReportSuccess(model string) error {
	s.mu.Lock()
	now := s.clock.Now()
	events, err := s.rollover(now)

	s.lastSuccess[model] = now
	s.record.Requests[model]++
	s.record.Total++
	if ev, ok := thresholdEvent(s.record); ok {
		events = append(events, ev)
	}

	saveErr := s.saveLocked()
	if saveErr != nil {
		events = append(events, Event{Kind: EventPersistenceDegraded, Model: model, Err: saveErr})
		if err == nil {
			err = saveErr
		}
	}
	remaining := s.record.Remaining()
	s.mu.Unlock()

	metrics.DispatchTotal.WithLabelValues(model).Inc()
	metrics.BudgetRemaining.Set(float64(remaining))
	s.emit(events...)

	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceDegraded, err)
	}
	return nil
}

// RemainingBudget returns max(0, limit - used today). A new calendar day resets usage.
func (s *Scheduler) RemainingBudget() int {
	s.mu.Lock()
	events, _ := s.rollover(s.clock.Now())
	remaining := s.record.Remaining()
	s.mu.Unlock()

	metrics.BudgetRemaining.Set(float64(remaining))
	s.emit(events...)
	return remaining
}

// SetDailyLimit changes the limit without touching today's counts.
func (s *Scheduler) SetDailyLimit(limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: daily limit must be positive, got %d", ErrInvalidConfiguration, limit)
	}

	s.mu.Lock()
	events, err := s.rollover(s.clock.Now())
	s.record.Limit = limit
	if saveErr := s.saveLocked(); saveErr != nil {
		events = append(events, Event{Kind: EventPersistenceDegraded, Err: saveErr})
		if err == nil {
			err = saveErr
		}
	}
	remaining := s.record.Remaining()
	s.mu.Unlock()

	s.logger.Info("Daily request limit updated", zap.Int("limit", limit))
	metrics.BudgetRemaining.Set(float64(remaining))
	s.emit(events...)

	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceDegraded, err)
	}
	return nil
}

// rollover zeroes the record when the calendar date changed. Caller holds s.mu.
func (s *Scheduler) rollover(now time.Time) ([]Event, error) {
	today := now.Format(dateLayout)
	if s.record.Date == today {
		return nil, nil
	}
	events := []Event{{Kind: EventBudgetReset, Used: s.record.Total, Limit: s.record.Limit}}
	s.record = models.NewBudgetRecord(today, s.models, s.record.Limit)
	if err := s.saveLocked(); err != nil {
		events = append(events, Event{Kind: EventPersistenceDegraded, Err: err})
		return events, err
	}
	return events, nil
}

func (s *Scheduler) saveLocked() error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	return s.save(ctx)
}

func (s *Scheduler) save(ctx context.Context) error {
	if err := s.store.Save(ctx, s.record.Clone()); err != nil {
		metrics.PersistenceErrorsTotal.WithLabelValues("save").Inc()
		return err
	}
	return nil
}

func (s *Scheduler) today() string {
	return s.clock.Now().Format(dateLayout)
}

// thresholdEvent warns at 80% every 50 requests and at 90% every 10.
func thresholdEvent(rec models.BudgetRecord) (Event, bool) {
	if rec.Limit <= 0 {
		return Event{}, false
	}
	pct := float64(rec.Total) / float64(rec.Limit) * 100
	switch {
	case pct >= 90 && rec.Total%10 == 0:
		return Event{Kind: EventBudgetCritical, Used: rec.Total, Limit: rec.Limit}, true
	case pct >= 80 && rec.Total%50 == 0:
		return Event{Kind: EventBudgetWarning, Used: rec.Total, Limit: rec.Limit}, true
	}
	return Event{}, false
}
