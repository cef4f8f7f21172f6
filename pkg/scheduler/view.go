package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pario-ai/tickerpulse/pkg/budget"
	"github.com/pario-ai/tickerpulse/pkg/models"
)

// ViewOptions configures a View.
type ViewOptions struct {
	Models []string
	// DailyLimit is reported when the store holds no record yet.
	DailyLimit        int
	RequestsPerMinute float64
	Store             budget.Store
	Clock             Clock
}

// View reads the persisted budget without owning it. Every Snapshot reloads
// the store, so usage written by other processes shows up, and nothing is
// ever written back. Cool-downs live only in the dispatching process and are
// always empty here.
type View struct {
	models []string
	limit  int
	pacing time.Duration
	store  budget.Store
	clock  Clock
}

// NewView validates opts like New does, without touching the store.
func NewView(opts ViewOptions) (*View, error) {
	if len(opts.Models) == 0 {
		return nil, fmt.Errorf("%w: model pool is empty", ErrInvalidConfiguration)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: view needs a budget store", ErrInvalidConfiguration)
	}
	pacing, err := pacingInterval(opts.RequestsPerMinute)
	if err != nil {
		return nil, err
	}
	v := &View{
		models: append([]string(nil), opts.Models...),
		limit:  opts.DailyLimit,
		pacing: pacing,
		store:  opts.Store,
		clock:  opts.Clock,
	}
	if v.clock == nil {
		v.clock = wallClock{}
	}
	return v, nil
}

// Snapshot loads the stored record and applies the same day rollover and
// normalization a Scheduler would, in memory only. A failed load is
// returned wrapped in ErrPersistenceDegraded.
func (v *View) Snapshot(ctx context.Context) (Snapshot, error) {
	today := v.clock.Now().Format(dateLayout)

	rec, err := v.store.Load(ctx)
	switch {
	case errors.Is(err, budget.ErrNoRecord):
		rec = models.NewBudgetRecord(today, v.models, v.limit)
	case err != nil:
		return Snapshot{}, fmt.Errorf("%w: %w", ErrPersistenceDegraded, err)
	case rec.Date != today:
		rec = models.NewBudgetRecord(today, v.models, rec.Limit)
	default:
		rec = normalize(rec, v.models)
	}
	return newSnapshot(rec, append([]string(nil), v.models...), map[string]time.Duration{}, v.pacing), nil
}
