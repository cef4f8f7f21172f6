package models

import "time"

// Mention is a ticker count observed in one subreddit for a timeframe.
type Mention struct {
	Ticker    string    `json:"ticker"`
	Subreddit string    `json:"subreddit"`
	Count     int       `json:"count"`
	Timeframe Timeframe `json:"timeframe"`
	Timestamp time.Time `json:"timestamp"`
}

// TickerCount is an aggregated mention total.
type TickerCount struct {
	Ticker string `json:"ticker"`
	Count  int    `json:"count"`
}

// SentimentRecord is one scored post for a ticker.
type SentimentRecord struct {
	Ticker    string    `json:"ticker"`
	Subreddit string    `json:"subreddit"`
	PostID    string    `json:"post_id"`
	Title     string    `json:"title,omitempty"`
	PostScore int       `json:"post_score,omitempty"`
	Score     float64   `json:"sentiment_score"`
	Timestamp time.Time `json:"timestamp"`
}

// SentimentStats aggregates sentiment scores for a ticker.
type SentimentStats struct {
	Ticker   string  `json:"ticker"`
	Average  float64 `json:"avg_sentiment"`
	Total    int     `json:"total_posts"`
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Neutral  int     `json:"neutral"`
}
