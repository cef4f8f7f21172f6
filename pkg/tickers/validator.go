package tickers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultSources are the nightly NASDAQ, NYSE and AMEX symbol lists.
var DefaultSources = []string{
	"https://raw.githubusercontent.com/rreichel3/US-Stock-Symbols/main/nasdaq/nasdaq_tickers.txt",
	"https://raw.githubusercontent.com/rreichel3/US-Stock-Symbols/main/nyse/nyse_tickers.txt",
	"https://raw.githubusercontent.com/rreichel3/US-Stock-Symbols/main/amex/amex_tickers.txt",
}

const (
	DefaultCacheFile = "valid_tickers_cache.json"
	DefaultMaxAge    = 24 * time.Hour
)

// ErrNoTickers is returned when every source failed and no cache was usable.
var ErrNoTickers = errors.New("no ticker symbols available")

// Set is a collection of ticker symbols. An empty Set disables validation.
type Set map[string]struct{}

// NewSet builds a Set from symbols, trimming and uppercasing each.
func NewSet(symbols ...string) Set {
	s := make(Set, len(symbols))
	for _, sym := range symbols {
		if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
			s[sym] = struct{}{}
		}
	}
	return s
}

// Contains reports membership.
func (s Set) Contains(sym string) bool {
	_, ok := s[sym]
	return ok
}

// Allows is Contains, except an empty Set allows everything.
func (s Set) Allows(sym string) bool {
	return len(s) == 0 || s.Contains(sym)
}

// Sorted returns the symbols in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for sym := range s {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

type cacheFile struct {
	Timestamp time.Time `json:"timestamp"`
	Tickers   []string  `json:"tickers"`
}

// Options configures a Validator.
type Options struct {
	CachePath  string
	MaxAge     time.Duration
	Sources    []string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Validator loads the valid-ticker Set, caching it on disk.
type Validator struct {
	cachePath string
	maxAge    time.Duration
	sources   []string
	client    *http.Client
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a Validator with defaults for unset options.
func New(opts Options) *Validator {
	v := &Validator{
		cachePath: opts.CachePath,
		maxAge:    opts.MaxAge,
		sources:   opts.Sources,
		client:    opts.HTTPClient,
		logger:    opts.Logger,
		now:       time.Now,
	}
	if v.cachePath == "" {
		v.cachePath = DefaultCacheFile
	}
	if v.maxAge <= 0 {
		v.maxAge = DefaultMaxAge
	}
	if len(v.sources) == 0 {
		v.sources = DefaultSources
	}
	if v.client == nil {
		v.client = &http.Client{Timeout: 10 * time.Second}
	}
	if v.logger == nil {
		v.logger = zap.NewNop()
	}
	return v
}

// Load returns the cached Set when it is younger than MaxAge, else fetches.
func (v *Validator) Load(ctx context.Context) (Set, error) {
	if set, ok := v.readCache(); ok {
		return set, nil
	}
	return v.fetch(ctx)
}

// Refresh ignores the cache and fetches every source.
func (v *Validator) Refresh(ctx context.Context) (Set, error) {
	if err := os.Remove(v.cachePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		v.logger.Warn("Remove ticker cache", zap.String("path", v.cachePath), zap.Error(err))
	}
	return v.fetch(ctx)
}

func (v *Validator) readCache() (Set, bool) {
	data, err := os.ReadFile(v.cachePath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			v.logger.Warn("Ticker cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		v.logger.Warn("Ticker cache corrupt", zap.String("path", v.cachePath), zap.Error(err))
		return nil, false
	}
	if v.now().Sub(cf.Timestamp) >= v.maxAge || len(cf.Tickers) == 0 {
		return nil, false
	}
	v.logger.Debug("Using cached ticker list", zap.Int("tickers", len(cf.Tickers)))
	return NewSet(cf.Tickers...), true
}

func (v *Validator) fetch(ctx context.Context) (Set, error) {
	set := Set{}
	for _, src := range v.sources {
		n, err := v.fetchSource(ctx, src, set)
		if err != nil {
			v.logger.Warn("Ticker source failed", zap.String("url", src), zap.Error(err))
			continue
		}
		v.logger.Info("Fetched tickers", zap.String("url", src), zap.Int("count", n))
	}
	if len(set) == 0 {
		return set, ErrNoTickers
	}

	if err := v.writeCache(set); err != nil {
		v.logger.Warn("Ticker cache write failed", zap.Error(err))
	}
	return set, nil
}

func (v *Validator) fetchSource(ctx context.Context, url string, into Set) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("get: status %d", resp.StatusCode)
	}

	n := 0
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		sym := strings.ToUpper(strings.TrimSpace(sc.Text()))
		if sym == "" {
			continue
		}
		into[sym] = struct{}{}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("read body: %w", err)
	}
	return n, nil
}

func (v *Validator) writeCache(set Set) error {
	data, err := json.Marshal(cacheFile{Timestamp: v.now(), Tickers: set.Sorted()})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(v.cachePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(v.cachePath, data, 0o644)
}
