package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/tickerpulse/pkg/models"
)

const dayLayout = "2006-01-02"

// Tracker records and queries ticker mentions and post sentiment.
type Tracker interface {
	// SaveMentions stores per-subreddit mention counts. A second save for the
	// same ticker, subreddit, timeframe and second replaces the first.
	SaveMentions(ctx context.Context, mentions []models.Mention) error
	// SaveSentiment stores one scored post.
	SaveSentiment(ctx context.Context, rec models.SentimentRecord) error
	// TopStocks returns today's most mentioned tickers for a timeframe.
	TopStocks(ctx context.Context, timeframe models.Timeframe, limit int) ([]models.TickerCount, error)
	// TickerSentiment aggregates today's sentiment for a ticker. Returns false when there is none.
	TickerSentiment(ctx context.Context, ticker string) (models.SentimentStats, bool, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db  *sql.DB
	now func() time.Time
}

const createMentionsTable = `
CREATE TABLE IF NOT EXISTS stock_mentions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker TEXT NOT NULL,
	subreddit TEXT NOT NULL,
	mention_count INTEGER NOT NULL,
	timeframe TEXT NOT NULL,
	timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	day TEXT NOT NULL,
	UNIQUE(ticker, subreddit, timeframe, timestamp)
);
CREATE INDEX IF NOT EXISTS idx_ticker_timeframe ON stock_mentions(ticker, timeframe);
CREATE INDEX IF NOT EXISTS idx_mentions_day ON stock_mentions(day, timeframe);
`

const createSentimentTable = `
CREATE TABLE IF NOT EXISTS stock_sentiment (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker TEXT NOT NULL,
	subreddit TEXT NOT NULL,
	post_id TEXT NOT NULL,
	sentiment_score REAL NOT NULL,
	timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	day TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sentiment_ticker ON stock_sentiment(ticker, day);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createMentionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate mentions table: %w", err)
	}

	if _, err := db.Exec(createSentimentTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sentiment table: %w", err)
	}

	return &SQLiteTracker{db: db, now: time.Now}, nil
}

// SaveMentions stores mention counts in one transaction.
func (t *SQLiteTracker) SaveMentions(ctx context.Context, mentions []models.Mention) error {
	if len(mentions) == 0 {
		return nil
	}
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save mentions: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stamp := t.now().Truncate(time.Second)
	for _, m := range mentions {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = stamp
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO stock_mentions (ticker, subreddit, mention_count, timeframe, timestamp, day)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.Ticker, m.Subreddit, m.Count, string(m.Timeframe), ts.UTC(), ts.Format(dayLayout),
		); err != nil {
			return fmt.Errorf("save mention %s: %w", m.Ticker, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mentions: %w", err)
	}
	return nil
}

// SaveSentiment stores one scored post.
func (t *SQLiteTracker) SaveSentiment(ctx context.Context, rec models.SentimentRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = t.now()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO stock_sentiment (ticker, subreddit, post_id, sentiment_score, timestamp, day)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Ticker, rec.Subreddit, rec.PostID, rec.Score, ts.UTC(), ts.Format(dayLayout),
	)
	if err != nil {
		return fmt.Errorf("save sentiment: %w", err)
	}
	return nil
}

// TopStocks sums today's mention counts per ticker for timeframe.
func (t *SQLiteTracker) TopStocks(ctx context.Context, timeframe models.Timeframe, limit int) ([]models.TickerCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := t.db.QueryContext(ctx,
		`SELECT ticker, SUM(mention_count) AS total
		 FROM stock_mentions
		 WHERE timeframe = ? AND day = ?
		 GROUP BY ticker
		 ORDER BY total DESC, ticker
		 LIMIT ?`,
		string(timeframe), t.now().Format(dayLayout), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top stocks: %w", err)
	}
	defer rows.Close()

	var out []models.TickerCount
	for rows.Next() {
		var tc models.TickerCount
		if err := rows.Scan(&tc.Ticker, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan top stock: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// TickerSentiment aggregates today's scores with the ±0.05 neutral band.
func (t *SQLiteTracker) TickerSentiment(ctx context.Context, ticker string) (models.SentimentStats, bool, error) {
	stats := models.SentimentStats{Ticker: ticker}
	var avg sql.NullFloat64
	var pos, neg, neu sql.NullInt64

	err := t.db.QueryRowContext(ctx,
		`SELECT AVG(sentiment_score), COUNT(*),
		        SUM(CASE WHEN sentiment_score > 0.05 THEN 1 ELSE 0 END),
		        SUM(CASE WHEN sentiment_score < -0.05 THEN 1 ELSE 0 END),
		        SUM(CASE WHEN sentiment_score BETWEEN -0.05 AND 0.05 THEN 1 ELSE 0 END)
		 FROM stock_sentiment
		 WHERE ticker = ? AND day = ?`,
		ticker, t.now().Format(dayLayout),
	).Scan(&avg, &stats.Total, &pos, &neg, &neu)
	if err != nil {
		return models.SentimentStats{}, false, fmt.Errorf("ticker sentiment: %w", err)
	}
	if stats.Total == 0 {
		return models.SentimentStats{}, false, nil
	}
	stats.Average = avg.Float64
	stats.Positive = int(pos.Int64)
	stats.Negative = int(neg.Int64)
	stats.Neutral = int(neu.Int64)
	return stats, true, nil
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
