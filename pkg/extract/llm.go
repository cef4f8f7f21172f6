package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/tickerpulse/pkg/budget"
	"github.com/pario-ai/tickerpulse/pkg/cache/sqlite"
	"github.com/pario-ai/tickerpulse/pkg/llm"
	"github.com/pario-ai/tickerpulse/pkg/models"
	"github.com/pario-ai/tickerpulse/pkg/tickers"
)

const (
	DefaultMaxAttempts = 3
	postSeparator      = "\n\n---POST SEPARATOR---\n\n"
	validHintSize      = 30
)

var (
	// ErrNoModelAvailable means every attempt found the whole pool cooling down or paced.
	ErrNoModelAvailable = errors.New("no model available")
	// ErrExtractionFailed means every attempt ended in an error.
	ErrExtractionFailed = errors.New("ticker extraction failed")
)

// Completer sends one prompt to one model.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Scheduler hands out models and takes dispatch outcomes.
type Scheduler interface {
	Acquire() (string, bool)
	ReportRateLimited(model string, d time.Duration)
	ReportSuccess(model string) error
	RemainingBudget() int
}

// PromptCache stores answers keyed by prompt hash.
type PromptCache interface {
	Get(promptHash string) (models.CacheEntry, bool)
	Put(promptHash, model string, response []byte) error
}

// AuditLog records every call.
type AuditLog interface {
	Log(ctx context.Context, entry models.AuditEntry) error
}

// LLMOptions configures an LLM extractor. Cache and Audit are optional.
type LLMOptions struct {
	Client      Completer
	Scheduler   Scheduler
	Valid       tickers.Set
	Cache       PromptCache
	Audit       AuditLog
	Logger      *zap.Logger
	MaxAttempts int
	// Backoff returns the pause after a failed attempt. Nil means 2^attempt seconds.
	Backoff func(attempt int) time.Duration
}

// LLM extracts tickers and per-ticker sentiment with one model call per batch.
type LLM struct {
	client      Completer
	sched       Scheduler
	valid       tickers.Set
	cache       PromptCache
	audit       AuditLog
	logger      *zap.Logger
	maxAttempts int
	backoff     func(int) time.Duration
}

// NewLLM creates an LLM extractor.
func NewLLM(opts LLMOptions) *LLM {
	e := &LLM{
		client:      opts.Client,
		sched:       opts.Scheduler,
		valid:       opts.Valid,
		cache:       opts.Cache,
		audit:       opts.Audit,
		logger:      opts.Logger,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = DefaultMaxAttempts
	}
	if e.backoff == nil {
		e.backoff = func(attempt int) time.Duration { return time.Duration(1<<attempt) * time.Second }
	}
	return e
}

// BuildPrompt renders the aggregated extraction prompt for texts.
func BuildPrompt(texts []string, valid tickers.Set) string {
	var hint string
	if len(valid) > 0 {
		sample := valid.Sorted()
		if len(sample) > validHintSize {
			sample = sample[:validHintSize]
		}
		hint = "\nValid tickers: " + strings.Join(sample, ", ") + "..."
	}

	return fmt.Sprintf(`Extract stock tickers and sentiment from %d Reddit posts below.

RULES:
1. Only real stock tickers (AAPL, TSLA, etc) - ignore common words
2. Aggregate mentions across all posts
3. Calculate average sentiment per ticker: -1 (very negative) to +1 (very positive)%s

POSTS:
%s

OUTPUT (concise JSON only):
{
  "tickers": {
    "AAPL": {"mentions": 3, "sentiment": 0.7},
    "TSLA": {"mentions": 5, "sentiment": -0.2}
  },
  "summary": "one sentence"
}`, len(texts), hint, strings.Join(texts, postSeparator))
}

// Extract runs one aggregated extraction over texts.
func (e *LLM) Extract(ctx context.Context, texts []string) (Result, error) {
	if len(texts) == 0 {
		return Result{Tickers: map[string]TickerInfo{}}, nil
	}

	prompt := BuildPrompt(texts, e.valid)
	hash := sqlite.HashPrompt(prompt)
	if res, ok := e.fromCache(ctx, hash, len(texts)); ok {
		return res, nil
	}

	var lastErr error
	noModel := true
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := budget.Check(e.sched); err != nil {
			return Result{Tickers: map[string]TickerInfo{}, BudgetExhausted: true}, err
		}

		model, ok := e.sched.Acquire()
		if !ok {
			continue
		}
		noModel = false

		res, err := e.call(ctx, model, prompt, hash, len(texts))
		if err == nil {
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		// A 429 already moved the model into cool-down; rotate without pausing.
		if errors.Is(err, llm.ErrRateLimited) || attempt == e.maxAttempts-1 {
			continue
		}
		if err := sleep(ctx, e.backoff(attempt)); err != nil {
			return Result{}, err
		}
	}

	if noModel {
		return Result{Tickers: map[string]TickerInfo{}}, ErrNoModelAvailable
	}
	return Result{Tickers: map[string]TickerInfo{}}, fmt.Errorf("%w after %d attempts: %w", ErrExtractionFailed, e.maxAttempts, lastErr)
}

func (e *LLM) call(ctx context.Context, model, prompt, hash string, batch int) (Result, error) {
	start := time.Now()
	answer, err := e.client.Complete(ctx, model, prompt)
	latency := time.Since(start)

	entry := models.AuditEntry{
		Model:      model,
		BatchSize:  batch,
		PromptBody: prompt,
		LatencyMs:  latency.Milliseconds(),
		CreatedAt:  start,
	}

	if err != nil {
		var rl *llm.RateLimitError
		if errors.As(err, &rl) {
			e.sched.ReportRateLimited(model, rl.RetryAfter)
			entry.Outcome = models.OutcomeRateLimited
		} else {
			entry.Outcome = models.OutcomeError
		}
		entry.ErrorMessage = err.Error()
		e.record(ctx, entry)
		e.logger.Warn("Extraction call failed", zap.String("model", model), zap.Error(err))
		return Result{}, err
	}

	if perr := e.sched.ReportSuccess(model); perr != nil {
		e.logger.Warn("Budget not persisted", zap.String("model", model), zap.Error(perr))
	}

	entry.ResponseBody = answer
	res, err := e.parse(answer)
	if err != nil {
		entry.Outcome = models.OutcomeError
		entry.ErrorMessage = err.Error()
		e.record(ctx, entry)
		e.logger.Warn("Unparseable model answer, rotating", zap.String("model", model), zap.Error(err))
		return Result{}, err
	}

	entry.Outcome = models.OutcomeOK
	e.record(ctx, entry)
	if e.cache != nil {
		if err := e.cache.Put(hash, model, []byte(answer)); err != nil {
			e.logger.Warn("Prompt cache write failed", zap.Error(err))
		}
	}

	res.Model = model
	e.logger.Debug("Extracted tickers",
		zap.String("model", model),
		zap.Int("batch", batch),
		zap.Int("tickers", len(res.Tickers)),
		zap.Duration("latency", latency),
	)
	return res, nil
}

func (e *LLM) fromCache(ctx context.Context, hash string, batch int) (Result, bool) {
	if e.cache == nil {
		return Result{}, false
	}
	entry, ok := e.cache.Get(hash)
	if !ok {
		return Result{}, false
	}
	res, err := e.parse(string(entry.Response))
	if err != nil {
		return Result{}, false
	}
	res.Model = entry.Model
	res.Cached = true
	e.record(ctx, models.AuditEntry{
		Model:     entry.Model,
		Outcome:   models.OutcomeCached,
		BatchSize: batch,
		CreatedAt: time.Now(),
	})
	return res, true
}

// parse decodes a model answer, uppercases symbols, merges duplicates and
// drops anything outside the valid set.
func (e *LLM) parse(answer string) (Result, error) {
	var raw struct {
		Tickers map[string]TickerInfo `json:"tickers"`
		Summary string                `json:"summary"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFence(answer)), &raw); err != nil {
		return Result{}, fmt.Errorf("decode model answer: %w", err)
	}

	res := Result{Tickers: make(map[string]TickerInfo, len(raw.Tickers)), Summary: raw.Summary}
	for sym, info := range raw.Tickers {
		sym = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(sym, "$")))
		if sym == "" || !e.valid.Allows(sym) {
			continue
		}
		if info.Mentions <= 0 {
			info.Mentions = 1
		}
		info.Sentiment = clamp(info.Sentiment)
		if prev, ok := res.Tickers[sym]; ok {
			total := prev.Mentions + info.Mentions
			info.Sentiment = (prev.Sentiment*float64(prev.Mentions) + info.Sentiment*float64(info.Mentions)) / float64(total)
			info.Mentions = total
		}
		res.Tickers[sym] = info
	}
	return res, nil
}

func (e *LLM) record(ctx context.Context, entry models.AuditEntry) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Log(ctx, entry); err != nil {
		e.logger.Warn("Audit write failed", zap.Error(err))
	}
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
