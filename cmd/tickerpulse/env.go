package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/pario-ai/tickerpulse/pkg/audit"
	"github.com/pario-ai/tickerpulse/pkg/budget"
	cachepkg "github.com/pario-ai/tickerpulse/pkg/cache/sqlite"
	"github.com/pario-ai/tickerpulse/pkg/config"
	"github.com/pario-ai/tickerpulse/pkg/extract"
	"github.com/pario-ai/tickerpulse/pkg/llm"
	"github.com/pario-ai/tickerpulse/pkg/logging"
	"github.com/pario-ai/tickerpulse/pkg/metrics"
	"github.com/pario-ai/tickerpulse/pkg/reddit"
	"github.com/pario-ai/tickerpulse/pkg/scheduler"
	"github.com/pario-ai/tickerpulse/pkg/tickers"
	"github.com/pario-ai/tickerpulse/pkg/tracker"
)

var errNoAPIKey = errors.New("OPENROUTER_API_KEY is not set; run `tickerpulse setup` or use --mode regex")

// env holds the loaded config and everything opened from it.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	closers []func()
}

func newEnv(ro *rootOptions) (*env, error) {
	cfg, err := config.LoadOrDefault(ro.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level := cfg.Logging.Level
	if ro.verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	metrics.Register()
	return &env{cfg: cfg, logger: logger}, nil
}

func (e *env) onClose(fn func()) {
	e.closers = append(e.closers, fn)
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	_ = e.logger.Sync()
}

func (e *env) budgetStore() (budget.Store, error) {
	switch e.cfg.Budget.Store {
	case config.StoreMemory:
		return budget.NewMemoryStore(), nil
	case config.StoreRedis:
		s, err := budget.NewRedisStore(e.cfg.Budget.Redis)
		if err != nil {
			return nil, err
		}
		e.onClose(s.Close)
		return s, nil
	default:
		return budget.NewFileStore(e.cfg.Budget.Path), nil
	}
}

// scheduler builds the model scheduler. limit overrides budget.daily_limit when positive.
// budgetView reads the shared budget without writing to it, so read-only
// commands never overwrite a limit set on a running server.
func (e *env) budgetView() (*scheduler.View, error) {
	store, err := e.budgetStore()
	if err != nil {
		return nil, fmt.Errorf("open budget store: %w", err)
	}
	return scheduler.NewView(scheduler.ViewOptions{
		Models:            e.cfg.LLM.Models,
		DailyLimit:        e.cfg.Budget.DailyLimit,
		RequestsPerMinute: e.cfg.LLM.RequestsPerMinute,
		Store:             store,
	})
}

func (e *env) scheduler(ctx context.Context, limit int) (*scheduler.Scheduler, error) {
	store, err := e.budgetStore()
	if err != nil {
		return nil, fmt.Errorf("open budget store: %w", err)
	}
	if limit <= 0 {
		limit = e.cfg.Budget.DailyLimit
	}
	return scheduler.New(ctx, scheduler.Options{
		Models:            e.cfg.LLM.Models,
		DailyLimit:        limit,
		RequestsPerMinute: e.cfg.LLM.RequestsPerMinute,
		Store:             store,
		Logger:            e.logger.Named("scheduler"),
	})
}

func (e *env) tracker() (*tracker.SQLiteTracker, error) {
	tr, err := tracker.New(e.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init tracker: %w", err)
	}
	e.onClose(func() { _ = tr.Close() })
	return tr, nil
}

func (e *env) reddit() (*reddit.Client, error) {
	return reddit.New(reddit.Config{
		ClientID:     e.cfg.Reddit.ClientID,
		ClientSecret: e.cfg.Reddit.ClientSecret,
		UserAgent:    e.cfg.Reddit.UserAgent,
		AuthURL:      e.cfg.Reddit.AuthURL,
		APIURL:       e.cfg.Reddit.APIURL,
		Logger:       e.logger.Named("reddit"),
	})
}

func (e *env) validator() *tickers.Validator {
	return tickers.New(tickers.Options{
		CachePath: e.cfg.Tickers.CachePath,
		MaxAge:    e.cfg.Tickers.MaxAge,
		Sources:   e.cfg.Tickers.Sources,
		Logger:    e.logger.Named("tickers"),
	})
}

// validTickers loads the symbol list. Without one, extraction runs unvalidated.
func (e *env) validTickers(ctx context.Context) tickers.Set {
	set, err := e.validator().Load(ctx)
	if err != nil {
		e.logger.Warn("No valid ticker list, validation disabled", zap.Error(err))
		return nil
	}
	return set
}

func (e *env) promptCache() (*cachepkg.Cache, error) {
	c, err := cachepkg.New(e.cfg.DBPath, e.cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	e.onClose(func() { _ = c.Close() })
	return c, nil
}

func (e *env) auditLog() (*audit.Logger, error) {
	l, err := audit.New(e.cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	e.onClose(func() { _ = l.Close() })
	return l, nil
}

// llmExtractor wires the OpenRouter client, prompt cache and audit log.
func (e *env) llmExtractor(sched *scheduler.Scheduler, valid tickers.Set) (*extract.LLM, error) {
	if e.cfg.LLM.APIKey == "" {
		return nil, errNoAPIKey
	}
	opts := extract.LLMOptions{
		Client: llm.New(llm.Config{
			APIKey:      e.cfg.LLM.APIKey,
			BaseURL:     e.cfg.LLM.BaseURL,
			Timeout:     e.cfg.LLM.Timeout,
			MaxTokens:   e.cfg.LLM.MaxTokens,
			Temperature: e.cfg.LLM.Temperature,
			Logger:      e.logger.Named("llm"),
		}),
		Scheduler:   sched,
		Valid:       valid,
		Logger:      e.logger.Named("extract"),
		MaxAttempts: e.cfg.LLM.MaxAttempts,
	}
	if e.cfg.Cache.Enabled {
		c, err := e.promptCache()
		if err != nil {
			return nil, err
		}
		opts.Cache = c
	}
	if e.cfg.Audit.Enabled {
		l, err := e.auditLog()
		if err != nil {
			return nil, err
		}
		opts.Audit = l
	}
	return extract.NewLLM(opts), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
