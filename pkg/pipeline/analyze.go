package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pario-ai/tickerpulse/pkg/filter"
	"github.com/pario-ai/tickerpulse/pkg/models"
	"github.com/pario-ai/tickerpulse/pkg/sentiment"
)

const (
	DefaultSearchLimit     = 50
	DefaultAnalyzeWorkers  = 5
	defaultSampleSize      = 3
	defaultAnalyzeTimespan = models.TimeframeWeek
)

// AnalyzeOptions controls one AnalyzeSentiment run.
type AnalyzeOptions struct {
	Subreddits []string
	Timeframe  models.Timeframe
	PostLimit  int
	Workers    int
	// WithContext blends each post's score with the extractor's summary of
	// the subreddit's posts. Costs one extraction call per subreddit.
	WithContext bool
}

// SubredditCount is how many scored posts came from one subreddit.
type SubredditCount struct {
	Subreddit string
	Count     int
}

// SentimentReport is the outcome of AnalyzeSentiment.
type SentimentReport struct {
	Ticker      string
	Stats       models.SentimentStats
	Label       string
	BySubreddit []SubredditCount
	TopPosts    []models.SentimentRecord
	Failed      map[string]error
}

// AnalyzeSentiment scores recent posts that mention ticker in each subreddit,
// persists every score and aggregates them.
func (p *Pipeline) AnalyzeSentiment(ctx context.Context, ticker string, opts AnalyzeOptions) (SentimentReport, error) {
	ticker = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(ticker), "$"))
	if ticker == "" {
		return SentimentReport{}, ErrEmptyTicker
	}
	if len(opts.Subreddits) == 0 {
		return SentimentReport{}, ErrNoSubreddits
	}
	if opts.PostLimit <= 0 {
		opts.PostLimit = DefaultSearchLimit
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultAnalyzeWorkers
	}
	if opts.Timeframe == "" {
		opts.Timeframe = defaultAnalyzeTimespan
	}

	var (
		mu      sync.Mutex
		records []models.SentimentRecord
		failed  = map[string]error{}
	)
	forEach(ctx, opts.Subreddits, opts.Workers, func(ctx context.Context, sub string) {
		recs, err := p.scoreSubreddit(ctx, sub, ticker, opts)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			failed[sub] = err
			p.logger.Warn("Subreddit failed", zap.String("subreddit", sub), zap.String("ticker", ticker), zap.Error(err))
		}
		records = append(records, recs...)
	})
	if err := ctx.Err(); err != nil {
		return SentimentReport{}, err
	}

	scores := make([]float64, 0, len(records))
	perSub := map[string]int{}
	for _, r := range records {
		scores = append(scores, r.Score)
		perSub[r.Subreddit]++
	}
	stats := sentiment.Aggregate(ticker, scores)

	sort.SliceStable(records, func(i, j int) bool { return records[i].PostScore > records[j].PostScore })
	top := records
	if len(top) > defaultSampleSize {
		top = top[:defaultSampleSize]
	}

	return SentimentReport{
		Ticker:      ticker,
		Stats:       stats,
		Label:       sentiment.Label(stats.Average),
		BySubreddit: countsBySubreddit(perSub),
		TopPosts:    top,
		Failed:      failed,
	}, nil
}

func (p *Pipeline) scoreSubreddit(ctx context.Context, sub, ticker string, opts AnalyzeOptions) ([]models.SentimentRecord, error) {
	posts, err := p.source.Search(ctx, sub, ticker, opts.Timeframe, opts.PostLimit)
	if err != nil {
		return nil, fmt.Errorf("search r/%s: %w", sub, err)
	}

	var matched []models.Post
	for _, post := range posts {
		if p.filters.SkipFlairs && filter.SkipFlair(post.Flair) {
			continue
		}
		if !p.mentions(post.Text(), ticker) {
			continue
		}
		matched = append(matched, post)
	}
	if len(matched) == 0 {
		return nil, nil
	}

	discussion := ""
	if opts.WithContext {
		discussion = p.discussionSummary(ctx, sub, matched)
	}

	now := p.now()
	out := make([]models.SentimentRecord, 0, len(matched))
	for _, post := range matched {
		rec := models.SentimentRecord{
			Ticker:    ticker,
			Subreddit: sub,
			PostID:    post.ID,
			Title:     post.Title,
			PostScore: post.Score,
			Score:     p.analyzer.Blend(post.Text(), discussion),
			Timestamp: now,
		}
		if p.store != nil {
			if err := p.store.SaveSentiment(ctx, rec); err != nil {
				return out, fmt.Errorf("save sentiment: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// mentions reports whether text really refers to ticker, not just to a word
// the search happened to match.
func (p *Pipeline) mentions(text, ticker string) bool {
	for _, sym := range p.matcher.Tickers(text) {
		if sym == ticker {
			return true
		}
	}
	return false
}

// discussionSummary asks the extractor for a one-line reading of the posts.
// Failures yield no context; the plain text score is used instead.
func (p *Pipeline) discussionSummary(ctx context.Context, sub string, posts []models.Post) string {
	if p.budgetSpent() {
		return ""
	}
	texts := make([]string, 0, len(posts))
	for _, post := range posts {
		texts = append(texts, post.Text())
	}
	batch := filter.BatchByTokens(texts, p.filters.MaxBatchTokens)[0]
	res, err := p.extractor.Extract(ctx, batch)
	if err != nil {
		p.logger.Debug("No discussion context", zap.String("subreddit", sub), zap.Error(err))
		return ""
	}
	return res.Summary
}

// countsBySubreddit orders subreddits by count, highest first.
func countsBySubreddit(m map[string]int) []SubredditCount {
	out := make([]SubredditCount, 0, len(m))
	for sub, n := range m {
		out = append(out, SubredditCount{Subreddit: sub, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Subreddit < out[j].Subreddit
	})
	return out
}
