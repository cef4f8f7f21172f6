package models

import "time"

// Outcomes recorded for a language-model call.
const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
	OutcomeCached      = "cached"
)

// AuditEntry represents a single audited language-model call.
type AuditEntry struct {
	RequestID    string    `json:"request_id"`
	Model        string    `json:"model"`
	Outcome      string    `json:"outcome"`
	BatchSize    int       `json:"batch_size"`
	PromptBody   string    `json:"prompt_body,omitempty"`
	ResponseBody string    `json:"response_body,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
	LatencyMs    int64     `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditConfig controls the audit logging subsystem.
type AuditConfig struct {
	Enabled       bool     `yaml:"enabled"`
	DBPath        string   `yaml:"db_path"`
	RetentionDays int      `yaml:"retention_days"`
	Include       []string `yaml:"include"` // "prompts", "responses"
	MaxBodySize   int      `yaml:"max_body_size"`
	ExcludeModels []string `yaml:"exclude_models"`
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	Model     string
	Outcome   string
	Since     time.Time
	RequestID string
	Limit     int
}

// AuditStat holds aggregate audit counts for a model/day combination.
type AuditStat struct {
	Model       string
	Day         string
	Count       int
	RateLimited int
}
