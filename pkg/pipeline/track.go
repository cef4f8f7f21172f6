package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pario-ai/tickerpulse/pkg/budget"
	"github.com/pario-ai/tickerpulse/pkg/filter"
	"github.com/pario-ai/tickerpulse/pkg/metrics"
	"github.com/pario-ai/tickerpulse/pkg/models"
)

const (
	DefaultPostLimit   = 100
	DefaultTopComments = 50
	DefaultWorkers     = 2

	// Posts fetched per wanted post, to leave room for filtering.
	overfetch = 3
	// Comments shorter than this are not worth a model's attention.
	minRawComment = 20
	minPostText   = 10
)

// TrackOptions controls one TrackHotStocks run.
type TrackOptions struct {
	Subreddits  []string
	Timeframe   models.Timeframe
	PostLimit   int
	TopComments int
	Workers     int
	// AnalyzeTop runs AnalyzeSentiment for the first N ranked tickers.
	AnalyzeTop int
}

// TrackResult is the outcome of TrackHotStocks.
type TrackResult struct {
	Ranked          []models.TickerCount
	BySubreddit     map[string]map[string]int
	Posts           int
	Comments        int
	Batches         int
	BudgetExhausted bool
	Failed          map[string]error
	Sentiment       []SentimentReport
}

type subredditScan struct {
	counts    map[string]int
	posts     int
	comments  int
	batches   int
	exhausted bool
}

// TrackHotStocks counts ticker mentions across subreddits, persists them and
// returns the combined ranking. A failing subreddit is reported in Failed and
// does not stop the others.
func (p *Pipeline) TrackHotStocks(ctx context.Context, opts TrackOptions) (TrackResult, error) {
	if len(opts.Subreddits) == 0 {
		return TrackResult{}, ErrNoSubreddits
	}
	if opts.PostLimit <= 0 {
		opts.PostLimit = DefaultPostLimit
	}
	if opts.TopComments <= 0 {
		opts.TopComments = DefaultTopComments
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Timeframe == "" {
		opts.Timeframe = models.TimeframeDay
	}

	res := TrackResult{
		BySubreddit: map[string]map[string]int{},
		Failed:      map[string]error{},
	}
	var mu sync.Mutex
	forEach(ctx, opts.Subreddits, opts.Workers, func(ctx context.Context, sub string) {
		scan, err := p.scanSubreddit(ctx, sub, opts)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			res.Failed[sub] = err
			p.logger.Warn("Subreddit failed", zap.String("subreddit", sub), zap.Error(err))
		}
		if len(scan.counts) > 0 {
			res.BySubreddit[sub] = scan.counts
		}
		res.Posts += scan.posts
		res.Comments += scan.comments
		res.Batches += scan.batches
		res.BudgetExhausted = res.BudgetExhausted || scan.exhausted
	})
	if err := ctx.Err(); err != nil {
		return res, err
	}

	res.Ranked = rank(res.BySubreddit)
	if err := p.saveMentions(ctx, res.BySubreddit, opts.Timeframe); err != nil {
		return res, err
	}

	for i := 0; i < opts.AnalyzeTop && i < len(res.Ranked); i++ {
		report, err := p.AnalyzeSentiment(ctx, res.Ranked[i].Ticker, AnalyzeOptions{Subreddits: opts.Subreddits})
		if err != nil {
			p.logger.Warn("Sentiment follow-up failed", zap.String("ticker", res.Ranked[i].Ticker), zap.Error(err))
			continue
		}
		res.Sentiment = append(res.Sentiment, report)
	}
	return res, nil
}

func (p *Pipeline) scanSubreddit(ctx context.Context, sub string, opts TrackOptions) (subredditScan, error) {
	scan := subredditScan{counts: map[string]int{}}

	listing, err := p.source.Top(ctx, sub, opts.Timeframe, opts.PostLimit*overfetch)
	if err != nil {
		return scan, fmt.Errorf("fetch r/%s: %w", sub, err)
	}

	var (
		postTexts []string
		comments  []models.Comment
	)
	for _, post := range listing {
		if scan.posts >= opts.PostLimit {
			break
		}
		if (p.filters.SkipFlairs && filter.SkipFlair(post.Flair)) || !filter.ShouldAnalyzePost(post, p.filters.MinPostScore) {
			metrics.PipelineItemsTotal.WithLabelValues("post", "filtered").Inc()
			continue
		}
		metrics.PipelineItemsTotal.WithLabelValues("post", "kept").Inc()
		scan.posts++

		text := "TITLE: " + post.Title + "\n\nBODY: " + post.Body
		if len(strings.TrimSpace(text)) > minPostText {
			postTexts = append(postTexts, text)
		}

		cs, err := p.source.Comments(ctx, sub, post.ID, p.filters.CommentsPerPost)
		if err != nil {
			if ctx.Err() != nil {
				return scan, ctx.Err()
			}
			p.logger.Debug("Comments unavailable", zap.String("post", post.ID), zap.Error(err))
			continue
		}
		for _, c := range cs {
			if len(c.Body) > minRawComment {
				comments = append(comments, c)
			}
		}
	}

	sort.SliceStable(comments, func(i, j int) bool { return comments[i].Score > comments[j].Score })
	if len(comments) > opts.TopComments {
		comments = comments[:opts.TopComments]
	}
	kept, st := filter.FilterComments(comments, p.filters.MinCommentLength)
	metrics.PipelineItemsTotal.WithLabelValues("comment", "kept").Add(float64(st.Kept))
	metrics.PipelineItemsTotal.WithLabelValues("comment", "filtered").Add(float64(st.Filtered))
	scan.comments = len(kept)
	p.logger.Debug("Collected",
		zap.String("subreddit", sub),
		zap.Int("posts", scan.posts),
		zap.Int("comments", len(kept)),
		zap.Float64("comment_filter_rate", st.FilterRate),
	)

	commentTexts := make([]string, 0, len(kept))
	for _, c := range kept {
		commentTexts = append(commentTexts, c.Body)
	}

	batches := filter.BatchByTokens(postTexts, p.filters.MaxBatchTokens)
	batches = append(batches, filter.BatchByTokens(commentTexts, p.filters.MaxBatchTokens)...)
	for i, batch := range batches {
		if p.budgetSpent() {
			scan.exhausted = true
			p.logger.Warn("Budget exhausted, stopping",
				zap.String("subreddit", sub),
				zap.Int("batch", i+1),
				zap.Int("batches", len(batches)),
			)
			break
		}

		out, err := p.extractor.Extract(ctx, batch)
		scan.batches++
		metrics.PipelineBatchesTotal.Inc()
		if errors.Is(err, budget.ErrBudgetExceeded) || out.BudgetExhausted {
			scan.exhausted = true
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return scan, ctx.Err()
			}
			p.logger.Warn("Batch extraction failed", zap.String("subreddit", sub), zap.Int("batch", i+1), zap.Error(err))
			continue
		}
		for sym, info := range out.Tickers {
			scan.counts[sym] += info.Mentions
		}
	}
	return scan, nil
}

func (p *Pipeline) saveMentions(ctx context.Context, bySub map[string]map[string]int, tf models.Timeframe) error {
	if p.store == nil || len(bySub) == 0 {
		return nil
	}
	now := p.now()
	var mentions []models.Mention
	for sub, counts := range bySub {
		for sym, n := range counts {
			mentions = append(mentions, models.Mention{
				Ticker:    sym,
				Subreddit: sub,
				Count:     n,
				Timeframe: tf,
				Timestamp: now,
			})
		}
	}
	if err := p.store.SaveMentions(ctx, mentions); err != nil {
		return fmt.Errorf("save mentions: %w", err)
	}
	return nil
}

// rank sums per-subreddit counts, highest first, ties alphabetical.
func rank(bySub map[string]map[string]int) []models.TickerCount {
	totals := map[string]int{}
	for _, counts := range bySub {
		for sym, n := range counts {
			totals[sym] += n
		}
	}
	out := make([]models.TickerCount, 0, len(totals))
	for sym, n := range totals {
		out = append(out, models.TickerCount{Ticker: sym, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out
}
