// Package pipeline ties Reddit fetching, content filtering, ticker
// extraction, sentiment scoring and storage together.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/tickerpulse/pkg/budget"
	"github.com/pario-ai/tickerpulse/pkg/config"
	"github.com/pario-ai/tickerpulse/pkg/extract"
	"github.com/pario-ai/tickerpulse/pkg/models"
	"github.com/pario-ai/tickerpulse/pkg/sentiment"
	"github.com/pario-ai/tickerpulse/pkg/tickers"
)

var (
	ErrNoSubreddits = errors.New("no subreddits selected")
	ErrEmptyTicker  = errors.New("empty ticker")
)

// Source reads Reddit listings.
type Source interface {
	Top(ctx context.Context, sub string, tf models.Timeframe, limit int) ([]models.Post, error)
	Search(ctx context.Context, sub, query string, tf models.Timeframe, limit int) ([]models.Post, error)
	Comments(ctx context.Context, sub, postID string, limit int) ([]models.Comment, error)
}

// Store persists pipeline output.
type Store interface {
	SaveMentions(ctx context.Context, mentions []models.Mention) error
	SaveSentiment(ctx context.Context, rec models.SentimentRecord) error
}

// Options wires a Pipeline. Budget is nil in regex mode; in LLM mode it
// lets the pipeline stop before sending batches it cannot pay for.
type Options struct {
	Source    Source
	Store     Store
	Extractor extract.Extractor
	Budget    budget.Remainer
	Analyzer  *sentiment.Analyzer
	Valid     tickers.Set
	Filters   config.FilterConfig
	Logger    *zap.Logger
	Now       func() time.Time
}

// Pipeline runs tracking and sentiment jobs.
type Pipeline struct {
	source    Source
	store     Store
	extractor extract.Extractor
	budget    budget.Remainer
	analyzer  *sentiment.Analyzer
	matcher   *extract.Regex
	filters   config.FilterConfig
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a Pipeline. Zero filter values take the package defaults.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		source:    opts.Source,
		store:     opts.Store,
		extractor: opts.Extractor,
		budget:    opts.Budget,
		analyzer:  opts.Analyzer,
		matcher:   extract.NewRegex(opts.Valid),
		filters:   opts.Filters,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if p.extractor == nil {
		p.extractor = p.matcher
	}
	if p.analyzer == nil {
		p.analyzer = sentiment.New()
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	defaults := config.Default().Filters
	if p.filters.MinCommentLength <= 0 {
		p.filters.MinCommentLength = defaults.MinCommentLength
	}
	if p.filters.MaxBatchTokens <= 0 {
		p.filters.MaxBatchTokens = defaults.MaxBatchTokens
	}
	if p.filters.CommentsPerPost <= 0 {
		p.filters.CommentsPerPost = defaults.CommentsPerPost
	}
	return p
}

// budgetSpent reports whether a configured budget has nothing left.
func (p *Pipeline) budgetSpent() bool {
	return p.budget != nil && p.budget.RemainingBudget() <= 0
}

// forEach runs fn for every item on a pool of workers and waits for all of them.
func forEach(ctx context.Context, items []string, workers int, fn func(ctx context.Context, item string)) {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				fn(ctx, item)
			}
		}()
	}

	for _, item := range items {
		select {
		case jobs <- item:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
}
