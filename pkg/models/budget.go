package models

// BudgetRecord is the persisted daily request budget.
// Total always equals the sum of Requests.
type BudgetRecord struct {
	Date     string         `json:"date" yaml:"date"`
	Requests map[string]int `json:"requests" yaml:"requests"`
	Total    int            `json:"total" yaml:"total"`
	Limit    int            `json:"limit" yaml:"limit"`
}

// NewBudgetRecord returns a zeroed record for date with a counter for every model.
func NewBudgetRecord(date string, models []string, limit int) BudgetRecord {
	req := make(map[string]int, len(models))
	for _, m := range models {
		req[m] = 0
	}
	return BudgetRecord{Date: date, Requests: req, Limit: limit}
}

// Sum returns the sum of the per-model counters.
func (r BudgetRecord) Sum() int {
	n := 0
	for _, c := range r.Requests {
		n += c
	}
	return n
}

// Clone returns a deep copy of the record.
func (r BudgetRecord) Clone() BudgetRecord {
	out := r
	out.Requests = make(map[string]int, len(r.Requests))
	for k, v := range r.Requests {
		out.Requests[k] = v
	}
	return out
}

// Remaining returns the requests left today, never negative.
func (r BudgetRecord) Remaining() int {
	if r.Total >= r.Limit {
		return 0
	}
	return r.Limit - r.Total
}
