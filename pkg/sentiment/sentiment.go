// Package sentiment scores Reddit text with the VADER lexicon.
package sentiment

import (
	"sync"

	"github.com/jonreiter/govader"

	"github.com/pario-ai/tickerpulse/pkg/models"
)

// Threshold separates positive and negative scores from neutral ones.
const Threshold = 0.05

// Weights for Blend.
const (
	textWeight    = 0.6
	contextWeight = 0.4
)

// Labels for an average score.
const (
	LabelPositive = "POSITIVE"
	LabelNegative = "NEGATIVE"
	LabelNeutral  = "NEUTRAL"
)

// Analyzer wraps a VADER analyzer.
type Analyzer struct {
	mu    sync.Mutex
	vader *govader.SentimentIntensityAnalyzer
}

// New loads the lexicon.
func New() *Analyzer {
	return &Analyzer{vader: govader.NewSentimentIntensityAnalyzer()}
}

// Score returns the compound score of text in [-1, 1].
func (a *Analyzer) Score(text string) float64 {
	if text == "" {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.vader.PolarityScores(text).Compound
}

// Blend weighs the text score 60/40 against the score of a model's reading
// of the discussion. An empty context yields the plain text score.
func (a *Analyzer) Blend(text, context string) float64 {
	score := a.Score(text)
	if context == "" {
		return score
	}
	return score*textWeight + a.Score(context)*contextWeight
}

// Aggregate summarises scores for ticker.
func Aggregate(ticker string, scores []float64) models.SentimentStats {
	st := models.SentimentStats{Ticker: ticker, Total: len(scores)}
	if len(scores) == 0 {
		return st
	}
	var sum float64
	for _, s := range scores {
		sum += s
		switch {
		case s > Threshold:
			st.Positive++
		case s < -Threshold:
			st.Negative++
		default:
			st.Neutral++
		}
	}
	st.Average = sum / float64(len(scores))
	return st
}

// Label names the overall direction of an average score.
func Label(avg float64) string {
	switch {
	case avg >= Threshold:
		return LabelPositive
	case avg <= -Threshold:
		return LabelNegative
	default:
		return LabelNeutral
	}
}
