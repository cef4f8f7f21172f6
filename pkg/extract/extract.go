// Package extract finds stock tickers in Reddit text, either with a
// pattern match or with one aggregated language-model call per batch.
package extract

import (
	"context"
	"sort"
)

// TickerInfo is what was found for one symbol in a batch.
type TickerInfo struct {
	Mentions  int     `json:"mentions"`
	Sentiment float64 `json:"sentiment"`
}

// Result is the aggregated output for a batch of texts.
type Result struct {
	Tickers map[string]TickerInfo `json:"tickers"`
	Summary string                `json:"summary,omitempty"`

	// Model that produced the answer; empty for the regex extractor.
	Model string `json:"-"`
	// Cached is set when the answer came from the prompt cache.
	Cached bool `json:"-"`
	// BudgetExhausted is set when the daily budget stopped extraction.
	BudgetExhausted bool `json:"-"`
}

// Extractor turns a batch of texts into ticker counts.
type Extractor interface {
	Extract(ctx context.Context, texts []string) (Result, error)
}

// Ranked returns tickers by mention count, ties broken alphabetically.
func (r Result) Ranked() []string {
	out := make([]string, 0, len(r.Tickers))
	for t := range r.Tickers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		mi, mj := r.Tickers[out[i]].Mentions, r.Tickers[out[j]].Mentions
		if mi != mj {
			return mi > mj
		}
		return out[i] < out[j]
	})
	return out
}
