package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pario-ai/tickerpulse/pkg/models"
)

// Snapshot is a point-in-time view of scheduler state.
type Snapshot struct {
	Date           string                   `json:"date"`
	Limit          int                      `json:"limit"`
	Total          int                      `json:"total"`
	Remaining      int                      `json:"remaining"`
	Requests       map[string]int           `json:"requests"`
	Models         []string                 `json:"models"`
	Cooldowns      map[string]time.Duration `json:"-"`
	PacingInterval time.Duration            `json:"-"`
}

// Snapshot returns current counters and active cool-downs.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	events, _ := s.rollover(s.clock.Now())
	now := s.clock.Now()
	rec := s.record.Clone()
	cds := make(map[string]time.Duration, len(s.cooldowns))
	for m, until := range s.cooldowns {
		if now.Before(until) {
			cds[m] = until.Sub(now)
		}
	}
	s.mu.Unlock()
	s.emit(events...)

	return newSnapshot(rec, s.Models(), cds, s.pacing)
}

func newSnapshot(rec models.BudgetRecord, pool []string, cds map[string]time.Duration, pacing time.Duration) Snapshot {
	return Snapshot{
		Date:           rec.Date,
		Limit:          rec.Limit,
		Total:          rec.Total,
		Remaining:      rec.Remaining(),
		Requests:       rec.Requests,
		Models:         pool,
		Cooldowns:      cds,
		PacingInterval: pacing,
	}
}

// MarshalJSON writes durations as seconds and adds the summary line.
func (sn Snapshot) MarshalJSON() ([]byte, error) {
	type plain Snapshot
	cds := make(map[string]float64, len(sn.Cooldowns))
	for m, d := range sn.Cooldowns {
		cds[m] = d.Seconds()
	}
	return json.Marshal(struct {
		plain
		CooldownSeconds       map[string]float64 `json:"cooldown_seconds"`
		PacingIntervalSeconds float64            `json:"pacing_interval_seconds"`
		Summary               string             `json:"summary"`
	}{plain(sn), cds, sn.PacingInterval.Seconds(), sn.Summary()})
}

// Summary formats usage as "used/limit requests (pct%)".
func (sn Snapshot) Summary() string {
	pct := 0.0
	if sn.Limit > 0 {
		pct = float64(sn.Total) / float64(sn.Limit) * 100
	}
	return fmt.Sprintf("%d/%d requests (%.1f%%)", sn.Total, sn.Limit, pct)
}

// Detailed adds one line per model in pool order.
func (sn Snapshot) Detailed() string {
	var b strings.Builder
	b.WriteString("Total: ")
	b.WriteString(sn.Summary())
	for _, m := range sn.Models {
		fmt.Fprintf(&b, "\n  %s: %d requests", ShortName(m), sn.Requests[m])
	}
	return b.String()
}

// ShortName drops the vendor prefix from an OpenRouter model id.
func ShortName(model string) string {
	if i := strings.LastIndexByte(model, '/'); i >= 0 {
		return model[i+1:]
	}
	return model
}
