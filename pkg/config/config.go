package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pario-ai/tickerpulse/pkg/budget"
	"github.com/pario-ai/tickerpulse/pkg/models"
)

// Budget store backends.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// DefaultModels is the OpenRouter :free rotation pool.
var DefaultModels = []string{
	"deepseek/deepseek-chat-v3.1:free",
	"alibaba/tongyi-deepresearch-30b-a3b:free",
	"meituan/longcat-flash-chat:free",
	"nvidia/nemotron-nano-9b-v2:free",
	"openai/gpt-oss-20b:free",
	"z-ai/glm-4.5-air:free",
	"deepseek/deepseek-r1-0528-qwen3-8b:free",
	"deepseek/deepseek-r1-0528:free",
	"meta-llama/llama-3.3-8b-instruct:free",
	"qwen/qwen3-coder:free",
	"tngtech/deepseek-r1t2-chimera:free",
	"mistralai/mistral-small-3.2-24b-instruct:free",
	"moonshotai/kimi-dev-72b:free",
	"qwen/qwen3-235b-a22b:free",
	"tngtech/deepseek-r1t-chimera:free",
	"microsoft/mai-ds-r1:free",
	"moonshotai/kimi-vl-a3b-thinking:free",
	"meta-llama/llama-4-maverick:free",
	"meta-llama/llama-4-scout:free",
	"deepseek/deepseek-chat-v3-0324:free",
	"mistralai/mistral-small-3.1-24b-instruct:free",
	"google/gemma-3-27b-it:free",
	"nousresearch/deephermes-3-llama-3-8b-preview:free",
	"deepseek/deepseek-r1:free",
	"google/gemini-2.0-flash-exp:free",
	"meta-llama/llama-3.2-3b-instruct:free",
	"mistralai/mistral-nemo:free",
}

// DefaultSubreddits are the stock communities monitored by default.
var DefaultSubreddits = []string{
	"wallstreetbets",
	"stocks",
	"investing",
	"StockMarket",
	"options",
	"pennystocks",
	"Daytrading",
	"swingtrading",
	"RobinHood",
	"SecurityAnalysis",
}

// Config holds all tickerpulse configuration.
type Config struct {
	DBPath     string             `yaml:"db_path"`
	Subreddits []string           `yaml:"subreddits"`
	Reddit     RedditConfig       `yaml:"reddit"`
	LLM        LLMConfig          `yaml:"llm"`
	Budget     BudgetConfig       `yaml:"budget"`
	Cache      CacheConfig        `yaml:"cache"`
	Audit      models.AuditConfig `yaml:"audit"`
	Filters    FilterConfig       `yaml:"filters"`
	Tickers    TickersConfig      `yaml:"tickers"`
	Logging    LoggingConfig      `yaml:"logging"`
	Status     StatusConfig       `yaml:"status"`
}

// RedditConfig holds app-only OAuth credentials.
type RedditConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	UserAgent    string `yaml:"user_agent"`
	AuthURL      string `yaml:"auth_url"`
	APIURL       string `yaml:"api_url"`
}

// LLMConfig defines the OpenRouter endpoint and the model pool.
type LLMConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Models            []string      `yaml:"models"`
	RequestsPerMinute float64       `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxTokens         int           `yaml:"max_tokens"`
	Temperature       float32       `yaml:"temperature"`
	MaxAttempts       int           `yaml:"max_attempts"`
	Workers           int           `yaml:"workers"`
}

// BudgetConfig controls the daily request budget and where it is persisted.
type BudgetConfig struct {
	DailyLimit int                `yaml:"daily_limit"`
	Store      string             `yaml:"store"` // "file" (default), "redis" or "memory"
	Path       string             `yaml:"path"`
	Redis      budget.RedisConfig `yaml:"redis"`
}

// CacheConfig controls the prompt cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// FilterConfig tunes the pre-LLM content filters.
type FilterConfig struct {
	MinCommentLength int  `yaml:"min_comment_length"`
	MinPostScore     int  `yaml:"min_post_score"`
	SkipFlairs       bool `yaml:"skip_flairs"`
	MaxBatchTokens   int  `yaml:"max_batch_tokens"`
	CommentsPerPost  int  `yaml:"comments_per_post"`
}

// TickersConfig controls the valid-ticker list.
type TickersConfig struct {
	CachePath string        `yaml:"cache_path"`
	MaxAge    time.Duration `yaml:"max_age"`
	Sources   []string      `yaml:"sources"`
}

// LoggingConfig selects zap level and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// StatusConfig configures the status HTTP server.
type StatusConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath:     "stocks.db",
		Subreddits: append([]string(nil), DefaultSubreddits...),
		Reddit: RedditConfig{
			UserAgent: "tickerpulse/1.0",
			AuthURL:   "https://www.reddit.com/api/v1/access_token",
			APIURL:    "https://oauth.reddit.com",
		},
		LLM: LLMConfig{
			BaseURL:           "https://openrouter.ai/api/v1",
			Models:            append([]string(nil), DefaultModels...),
			RequestsPerMinute: 20,
			Timeout:           60 * time.Second,
			MaxTokens:         4000,
			Temperature:       0.1,
			MaxAttempts:       3,
			Workers:           2,
		},
		Budget: BudgetConfig{
			DailyLimit: 1000,
			Store:      StoreFile,
			Path:       budget.DefaultFile,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     6 * time.Hour,
		},
		Audit: models.AuditConfig{
			Enabled:       false,
			DBPath:        "tickerpulse-audit.db",
			RetentionDays: 14,
			MaxBodySize:   64 * 1024,
		},
		Filters: FilterConfig{
			MinCommentLength: 40,
			MinPostScore:     10,
			SkipFlairs:       true,
			MaxBatchTokens:   98000,
			CommentsPerPost:  20,
		},
		Tickers: TickersConfig{
			CachePath: "valid_tickers_cache.json",
			MaxAge:    24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Status: StatusConfig{
			Listen: ":9464",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
// A .env file in the working directory, if any, is loaded first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields Default with
// credentials taken from the environment.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		cfg.Reddit.ClientID = os.Getenv("REDDIT_CLIENT_ID")
		cfg.Reddit.ClientSecret = os.Getenv("REDDIT_CLIENT_SECRET")
		if ua := os.Getenv("REDDIT_USER_AGENT"); ua != "" {
			cfg.Reddit.UserAgent = ua
		}
		cfg.LLM.APIKey = os.Getenv("OPENROUTER_API_KEY")
		return cfg, nil
	}
	return cfg, err
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if len(c.LLM.Models) == 0 {
		return errors.New("llm.models must not be empty")
	}
	for i, m := range c.LLM.Models {
		if m == "" {
			return fmt.Errorf("llm.models[%d] is empty", i)
		}
	}
	if c.Budget.DailyLimit <= 0 {
		return fmt.Errorf("budget.daily_limit must be positive, got %d", c.Budget.DailyLimit)
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute must not be negative")
	}
	switch c.Budget.Store {
	case "", StoreFile, StoreMemory:
	case StoreRedis:
		if len(c.Budget.Redis.Addrs) == 0 {
			return errors.New("budget.redis.addrs is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown budget.store %q", c.Budget.Store)
	}
	return nil
}
