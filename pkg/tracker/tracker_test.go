package tracker

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/pario-ai/tickerpulse/pkg/models"
)

func newTestTracker(t *testing.T) *SQLiteTracker {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	tr, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestSaveMentionsAndTopStocks(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	err := tr.SaveMentions(ctx, []models.Mention{
		{Ticker: "NVDA", Subreddit: "stocks", Count: 4, Timeframe: models.TimeframeDay},
		{Ticker: "NVDA", Subreddit: "wallstreetbets", Count: 9, Timeframe: models.TimeframeDay},
		{Ticker: "AAPL", Subreddit: "stocks", Count: 6, Timeframe: models.TimeframeDay},
		{Ticker: "TSLA", Subreddit: "stocks", Count: 20, Timeframe: models.TimeframeWeek},
	})
	if err != nil {
		t.Fatal(err)
	}

	top, err := tr.TopStocks(ctx, models.TimeframeDay, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 tickers, got %+v", top)
	}
	if top[0].Ticker != "NVDA" || top[0].Count != 13 {
		t.Errorf("expected NVDA 13 first, got %+v", top[0])
	}
	if top[1].Ticker != "AAPL" || top[1].Count != 6 {
		t.Errorf("expected AAPL 6 second, got %+v", top[1])
	}

	top, err = tr.TopStocks(ctx, models.TimeframeDay, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 1 {
		t.Errorf("limit not applied: %+v", top)
	}
}

func TestSaveMentionsReplacesSameSecond(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	ts := time.Now().Truncate(time.Second)

	_ = tr.SaveMentions(ctx, []models.Mention{{Ticker: "AMD", Subreddit: "stocks", Count: 1, Timeframe: models.TimeframeDay, Timestamp: ts}})
	_ = tr.SaveMentions(ctx, []models.Mention{{Ticker: "AMD", Subreddit: "stocks", Count: 5, Timeframe: models.TimeframeDay, Timestamp: ts}})

	top, err := tr.TopStocks(ctx, models.TimeframeDay, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 1 || top[0].Count != 5 {
		t.Errorf("expected replaced count 5, got %+v", top)
	}
}

func TestTopStocksIgnoresOtherDays(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	_ = tr.SaveMentions(ctx, []models.Mention{{
		Ticker: "GME", Subreddit: "wallstreetbets", Count: 50, Timeframe: models.TimeframeDay,
		Timestamp: time.Now().AddDate(0, 0, -2),
	}})

	top, err := tr.TopStocks(ctx, models.TimeframeDay, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 0 {
		t.Errorf("expected no tickers today, got %+v", top)
	}
}

func TestTickerSentiment(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	for i, score := range []float64{0.8, -0.4, 0.02, 0.5} {
		if err := tr.SaveSentiment(ctx, models.SentimentRecord{
			Ticker: "AAPL", Subreddit: "stocks", PostID: string(rune('a' + i)), Score: score,
		}); err != nil {
			t.Fatal(err)
		}
	}
	_ = tr.SaveSentiment(ctx, models.SentimentRecord{Ticker: "MSFT", Subreddit: "stocks", PostID: "z", Score: -1})

	stats, ok, err := tr.TickerSentiment(ctx, "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected sentiment data")
	}
	if stats.Total != 4 || stats.Positive != 2 || stats.Negative != 1 || stats.Neutral != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if math.Abs(stats.Average-0.23) > 1e-9 {
		t.Errorf("expected average 0.23, got %v", stats.Average)
	}
}

func TestTickerSentimentMissing(t *testing.T) {
	tr := newTestTracker(t)

	_, ok, err := tr.TickerSentiment(context.Background(), "NOPE")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected no data")
	}
}

var _ Tracker = (*SQLiteTracker)(nil)
