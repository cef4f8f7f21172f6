package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pario-ai/tickerpulse/pkg/budget"
	"github.com/pario-ai/tickerpulse/pkg/config"
	"github.com/pario-ai/tickerpulse/pkg/extract"
	"github.com/pario-ai/tickerpulse/pkg/models"
	"github.com/pario-ai/tickerpulse/pkg/sentiment"
	"github.com/pario-ai/tickerpulse/pkg/tickers"
)

var now = time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)

type fakeSource struct {
	top      map[string][]models.Post
	search   map[string][]models.Post
	comments map[string][]models.Comment
	fail     map[string]error
}

func (f *fakeSource) Top(_ context.Context, sub string, _ models.Timeframe, _ int) ([]models.Post, error) {
	if err := f.fail[sub]; err != nil {
		return nil, err
	}
	return f.top[sub], nil
}

func (f *fakeSource) Search(_ context.Context, sub, _ string, _ models.Timeframe, _ int) ([]models.Post, error) {
	if err := f.fail[sub]; err != nil {
		return nil, err
	}
	return f.search[sub], nil
}

func (f *fakeSource) Comments(_ context.Context, _ string, postID string, _ int) ([]models.Comment, error) {
	return f.comments[postID], nil
}

type fakeStore struct {
	mu        sync.Mutex
	mentions  []models.Mention
	sentiment []models.SentimentRecord
}

func (s *fakeStore) SaveMentions(_ context.Context, m []models.Mention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mentions = append(s.mentions, m...)
	return nil
}

func (s *fakeStore) SaveSentiment(_ context.Context, rec models.SentimentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentiment = append(s.sentiment, rec)
	return nil
}

// countingExtractor finds one GME per batch and spends one unit of budget.
type countingExtractor struct {
	remaining atomic.Int32
	calls     atomic.Int32
	summary   string
	err       error
}

func (e *countingExtractor) Extract(_ context.Context, _ []string) (extract.Result, error) {
	e.calls.Add(1)
	if e.err != nil {
		return extract.Result{}, e.err
	}
	e.remaining.Add(-1)
	return extract.Result{
		Tickers: map[string]extract.TickerInfo{"GME": {Mentions: 1}},
		Summary: e.summary,
	}, nil
}

func (e *countingExtractor) RemainingBudget() int { return int(e.remaining.Load()) }

var filters = config.FilterConfig{MinCommentLength: 40, MinPostScore: 10, SkipFlairs: true}

func newPipeline(src Source, store Store, opts Options) *Pipeline {
	opts.Source = src
	opts.Store = store
	opts.Filters = filters
	opts.Now = func() time.Time { return now }
	if opts.Valid == nil {
		opts.Valid = tickers.NewSet("NVDA", "AMD", "TSLA", "AAPL", "GME")
	}
	return New(opts)
}

func TestTrackHotStocksRegex(t *testing.T) {
	src := &fakeSource{
		top: map[string][]models.Post{
			"stocks": {
				{ID: "p1", Title: "NVDA earnings beat", Body: "Thinking about NVDA and AMD calls", Flair: "DD", Score: 50},
				{ID: "p2", Title: "TSLA gains", Body: "Up 300% on TSLA", Flair: "Gain", Score: 100},
				{ID: "p3", Title: "AAPL dip", Body: "Buying more AAPL today", Score: 2},
			},
			"investing": {
				{ID: "p4", Title: "Long NVDA thesis", Body: "NVDA revenue growth", Score: 20},
			},
		},
		comments: map[string][]models.Comment{
			"p1": {
				{ID: "c1", Body: "I think AMD is undervalued because of strong data center revenue growth", Score: 30},
				{ID: "c2", Body: "lol", Score: 99},
			},
		},
	}
	store := &fakeStore{}
	p := newPipeline(src, store, Options{})

	res, err := p.TrackHotStocks(context.Background(), TrackOptions{
		Subreddits: []string{"stocks", "investing"},
		Timeframe:  models.TimeframeWeek,
		AnalyzeTop: 1,
	})
	require.NoError(t, err)
	require.Equal(t, []models.TickerCount{{Ticker: "AMD", Count: 2}, {Ticker: "NVDA", Count: 2}}, res.Ranked)
	require.Equal(t, map[string]map[string]int{
		"stocks":    {"NVDA": 1, "AMD": 2},
		"investing": {"NVDA": 1},
	}, res.BySubreddit)
	require.Equal(t, 2, res.Posts)
	require.Equal(t, 1, res.Comments)
	require.Equal(t, 3, res.Batches)
	require.False(t, res.BudgetExhausted)
	require.Empty(t, res.Failed)

	require.Len(t, store.mentions, 3)
	for _, m := range store.mentions {
		require.Equal(t, models.TimeframeWeek, m.Timeframe)
		require.Equal(t, now, m.Timestamp)
	}

	require.Len(t, res.Sentiment, 1)
	require.Equal(t, "AMD", res.Sentiment[0].Ticker)
	require.Zero(t, res.Sentiment[0].Stats.Total)
}

func TestTrackHotStocksStopsWhenBudgetSpent(t *testing.T) {
	post := func(id string) models.Post {
		return models.Post{ID: id, Title: "GME squeeze", Body: "GME short interest", Score: 50}
	}
	src := &fakeSource{top: map[string][]models.Post{
		"a": {post("a1")},
		"b": {post("b1")},
	}}
	ex := &countingExtractor{}
	ex.remaining.Store(1)
	p := newPipeline(src, &fakeStore{}, Options{Extractor: ex, Budget: ex})

	res, err := p.TrackHotStocks(context.Background(), TrackOptions{Subreddits: []string{"a", "b"}, Workers: 1})
	require.NoError(t, err)
	require.True(t, res.BudgetExhausted)
	require.Equal(t, []models.TickerCount{{Ticker: "GME", Count: 1}}, res.Ranked)
	require.Equal(t, int32(1), ex.calls.Load())
}

func TestTrackHotStocksExtractorOutOfBudget(t *testing.T) {
	src := &fakeSource{top: map[string][]models.Post{
		"a": {{ID: "a1", Title: "GME squeeze", Body: "GME short interest", Score: 50}},
	}}
	ex := &countingExtractor{err: budget.ErrBudgetExceeded}

	res, err := newPipeline(src, nil, Options{Extractor: ex}).TrackHotStocks(context.Background(), TrackOptions{Subreddits: []string{"a"}})
	require.NoError(t, err)
	require.True(t, res.BudgetExhausted)
	require.Empty(t, res.Ranked)
}

func TestTrackHotStocksIsolatesFailures(t *testing.T) {
	boom := errors.New("reddit down")
	src := &fakeSource{
		top: map[string][]models.Post{
			"ok": {{ID: "x", Title: "TSLA deliveries", Body: "TSLA beat estimates", Score: 30}},
		},
		fail: map[string]error{"broken": boom},
	}

	res, err := newPipeline(src, nil, Options{}).TrackHotStocks(context.Background(), TrackOptions{Subreddits: []string{"broken", "ok"}})
	require.NoError(t, err)
	require.ErrorIs(t, res.Failed["broken"], boom)
	require.Equal(t, []models.TickerCount{{Ticker: "TSLA", Count: 1}}, res.Ranked)
}

func TestTrackHotStocksNoSubreddits(t *testing.T) {
	_, err := newPipeline(&fakeSource{}, nil, Options{}).TrackHotStocks(context.Background(), TrackOptions{})
	require.ErrorIs(t, err, ErrNoSubreddits)
}

func analyzeSource() *fakeSource {
	return &fakeSource{search: map[string][]models.Post{
		"stocks": {
			{ID: "q1", Title: "NVDA is amazing", Body: "Great earnings, I love it", Score: 40},
			{ID: "q2", Title: "NVDA is terrible", Body: "Awful guidance, horrible quarter", Score: 80},
			{ID: "q3", Title: "nvidia stuff", Body: "nothing to see", Score: 500},
			{ID: "q4", Title: "NVDA loss porn", Body: "down bad", Flair: "Loss", Score: 900},
		},
		"investing": {
			{ID: "q5", Title: "NVDA looks great", Body: "Solid growth", Score: 5},
		},
	}}
}

func TestAnalyzeSentiment(t *testing.T) {
	store := &fakeStore{}
	p := newPipeline(analyzeSource(), store, Options{})

	rep, err := p.AnalyzeSentiment(context.Background(), "$nvda", AnalyzeOptions{Subreddits: []string{"stocks", "investing"}})
	require.NoError(t, err)
	require.Equal(t, "NVDA", rep.Ticker)
	require.Equal(t, 3, rep.Stats.Total)
	require.GreaterOrEqual(t, rep.Stats.Positive, 1)
	require.GreaterOrEqual(t, rep.Stats.Negative, 1)
	require.Equal(t, sentiment.Label(rep.Stats.Average), rep.Label)
	require.Equal(t, []SubredditCount{{Subreddit: "stocks", Count: 2}, {Subreddit: "investing", Count: 1}}, rep.BySubreddit)
	require.Equal(t, "q2", rep.TopPosts[0].PostID)
	require.Len(t, rep.TopPosts, 3)
	require.Len(t, store.sentiment, 3)
	require.Equal(t, now, store.sentiment[0].Timestamp)
}

func TestAnalyzeSentimentWithContext(t *testing.T) {
	ex := &countingExtractor{summary: "Commenters are very bearish and angry about terrible guidance."}
	ex.remaining.Store(10)
	store := &fakeStore{}
	p := newPipeline(analyzeSource(), store, Options{Extractor: ex, Budget: ex})

	_, err := p.AnalyzeSentiment(context.Background(), "NVDA", AnalyzeOptions{Subreddits: []string{"stocks"}, WithContext: true})
	require.NoError(t, err)
	require.Equal(t, int32(1), ex.calls.Load())

	a := sentiment.New()
	for _, rec := range store.sentiment {
		var text string
		for _, post := range analyzeSource().search["stocks"] {
			if post.ID == rec.PostID {
				text = post.Text()
			}
		}
		require.InDelta(t, a.Blend(text, ex.summary), rec.Score, 1e-9)
	}
}

func TestAnalyzeSentimentEmptyTicker(t *testing.T) {
	_, err := newPipeline(&fakeSource{}, nil, Options{}).AnalyzeSentiment(context.Background(), " $ ", AnalyzeOptions{Subreddits: []string{"x"}})
	require.ErrorIs(t, err, ErrEmptyTicker)
}

func TestParseSubredditSelection(t *testing.T) {
	list := []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10"}
	tests := []struct {
		name     string
		sel      string
		want     []string
		warnings int
	}{
		{name: "mixed", sel: "1,3-5,8", want: []string{"s1", "s3", "s4", "s5", "s8"}},
		{name: "single", sel: "3", want: []string{"s3"}},
		{name: "dedup keeps first order", sel: "2, 1-3", want: []string{"s2", "s1", "s3"}},
		{name: "bad parts skipped", sel: "0,11,abc,2-12,4", want: []string{"s4"}, warnings: 4},
		{name: "malformed range", sel: "x-2", warnings: 1},
		{name: "empty", sel: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warnings := ParseSubredditSelection(tt.sel, list)
			require.Equal(t, tt.want, got)
			require.Len(t, warnings, tt.warnings)
		})
	}
}

func TestForEachBoundsWorkers(t *testing.T) {
	var running, peak atomic.Int32
	items := []string{"a", "b", "c", "d", "e", "f"}
	var seen sync.Map

	forEach(context.Background(), items, 2, func(_ context.Context, item string) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		seen.Store(item, true)
		running.Add(-1)
	})

	require.LessOrEqual(t, peak.Load(), int32(2))
	for _, it := range items {
		_, ok := seen.Load(it)
		require.True(t, ok, it)
	}
}
