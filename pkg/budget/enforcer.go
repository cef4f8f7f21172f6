package budget

import (
	"context"
	"errors"

	"github.com/pario-ai/tickerpulse/pkg/models"
)

// ErrBudgetExceeded is returned when today's request budget is spent.
var ErrBudgetExceeded = errors.New("budget exceeded")

// ErrNoRecord is returned by a Store that holds no budget record yet.
var ErrNoRecord = errors.New("no budget record")

// Store persists the daily budget record.
type Store interface {
	// Load returns the stored record, or ErrNoRecord if none exists.
	Load(ctx context.Context) (models.BudgetRecord, error)
	// Save replaces the stored record.
	Save(ctx context.Context, rec models.BudgetRecord) error
}

// Remainer reports how many requests are left today.
type Remainer interface {
	RemainingBudget() int
}

// Check returns ErrBudgetExceeded if no requests are left.
// The budget is advisory: callers check it before asking for a model.
func Check(r Remainer) error {
	if r.RemainingBudget() <= 0 {
		return ErrBudgetExceeded
	}
	return nil
}
