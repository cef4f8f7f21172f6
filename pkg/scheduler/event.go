package scheduler

import (
	"time"

	"go.uber.org/zap"
)

// EventKind names an observable scheduler event.
type EventKind string

const (
	EventCooldown            EventKind = "cooldown"
	EventPersistenceDegraded EventKind = "persistence_degraded"
	EventBudgetReset         EventKind = "budget_reset"
	EventBudgetWarning       EventKind = "budget_warning"
	EventBudgetCritical      EventKind = "budget_critical"
)

// Event is emitted to the logger and to Options.OnEvent.
type Event struct {
	Kind     EventKind
	Model    string
	Duration time.Duration
	Used     int
	Limit    int
	Err      error
}

// emit must be called without s.mu held; OnEvent may call back into s.
func (s *Scheduler) emit(events ...Event) {
	for _, ev := range events {
		switch ev.Kind {
		case EventCooldown:
			s.logger.Warn("Model rate limited, cooling down",
				zap.String("model", ev.Model),
				zap.Duration("duration", ev.Duration),
			)
		case EventPersistenceDegraded:
			s.logger.Warn("Budget persistence degraded, using in-memory counters",
				zap.String("model", ev.Model),
				zap.Error(ev.Err),
			)
		case EventBudgetReset:
			s.logger.Info("Daily budget reset",
				zap.Int("previous_used", ev.Used),
				zap.Int("limit", ev.Limit),
			)
		case EventBudgetWarning, EventBudgetCritical:
			s.logger.Warn("Request budget running low",
				zap.String("level", string(ev.Kind)),
				zap.Int("used", ev.Used),
				zap.Int("limit", ev.Limit),
			)
		}
		if s.onEvent != nil {
			s.onEvent(ev)
		}
	}
}
