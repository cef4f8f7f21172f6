package models

import "time"

// Timeframe is a Reddit listing window.
type Timeframe string

const (
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
)

// ParseTimeframe maps user input to a Timeframe, defaulting to day.
func ParseTimeframe(s string) Timeframe {
	switch Timeframe(s) {
	case TimeframeWeek, TimeframeMonth:
		return Timeframe(s)
	default:
		return TimeframeDay
	}
}

// Post is a Reddit submission.
type Post struct {
	ID        string    `json:"id"`
	Subreddit string    `json:"subreddit"`
	Title     string    `json:"title"`
	Body      string    `json:"selftext"`
	Flair     string    `json:"link_flair_text"`
	URL       string    `json:"url"`
	Score     int       `json:"score"`
	Comments  int       `json:"num_comments"`
	CreatedAt time.Time `json:"created_at"`
}

// Text returns the title and body joined the way extractors expect.
func (p Post) Text() string {
	return p.Title + "\n\n" + p.Body
}

// Comment is a Reddit comment.
type Comment struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
	Body   string `json:"body"`
	Score  int    `json:"score"`
}
