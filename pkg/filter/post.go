package filter

import (
	"regexp"
	"strings"

	"github.com/pario-ai/tickerpulse/pkg/models"
)

// DefaultMaxBatchTokens fills a 100K context window with room for the answer.
const DefaultMaxBatchTokens = 98000

var (
	dollarTicker = regexp.MustCompile(`\$[A-Z]{1,5}\b`)
	capsWord     = regexp.MustCompile(`\b[A-Z]{1,5}\b`)
)

var postCommonWords = toSet(
	"I", "A", "IT", "IS", "OR", "SO", "DO", "GO", "TO", "BE", "WE", "HE", "ME",
	"US", "UP", "AT", "BY", "IN", "ON", "NO", "MY", "AM", "AN", "AS", "IF",
	"THE", "AND", "FOR", "NOT", "BUT", "CAN", "ALL", "ARE", "WAS", "HAS",
	"HIS", "HER", "ITS", "OUR", "OUT", "NEW", "NOW", "OLD", "ONE", "TWO",
	"WHY", "HOW", "WHO", "MAY", "WAY", "DAY", "GET", "GOT", "HAD",
	"WILL", "YEAR", "WEEK", "TIME", "JUST", "LIKE", "MAKE", "TAKE", "LOOK",
	"KNOW", "THINK", "WANT", "NEED", "GOOD", "MUCH", "MORE", "VERY", "WELL",
	"ALSO", "BACK", "DOWN", "EVEN", "BEEN", "FROM", "HERE", "ONLY", "OVER",
	"THAN", "THEN", "THEM", "THEY", "THIS", "THAT", "WHAT", "WHEN", "WITH",
	"YOUR", "HAVE", "INTO", "SOME", "SAID", "EACH", "COME", "MADE", "MOST",
	"LONG", "DOES", "SUCH", "BOTH", "MANY", "MUST", "CALL", "NEXT", "EVER",
	"ONCE", "DD", "TA", "FD", "ATH", "ATL", "IPO", "ETF", "CEO", "CFO",
	"WSB", "IMO", "TBH", "LOL", "WTF", "FYI", "ASAP", "FOMO", "YOLO",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// LikelyHasTicker is a cheap pre-check for ticker-looking tokens.
func LikelyHasTicker(text string) bool {
	if len(text) < 10 {
		return false
	}
	if strings.Contains(text, "$") && dollarTicker.MatchString(text) {
		return true
	}
	for _, w := range capsWord.FindAllString(text, -1) {
		if _, common := postCommonWords[w]; !common {
			return true
		}
	}
	return false
}

// ShouldAnalyzePost requires minScore upvotes and a likely ticker.
func ShouldAnalyzePost(post models.Post, minScore int) bool {
	if post.Score < minScore {
		return false
	}
	return LikelyHasTicker(post.Text())
}

// EstimateTokens approximates tokens as one per four bytes.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// BatchByTokens groups texts in order so each batch stays under maxTokens.
// A single text larger than maxTokens gets a batch of its own.
func BatchByTokens(texts []string, maxTokens int) [][]string {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxBatchTokens
	}
	var (
		batches [][]string
		current []string
		tokens  int
	)
	for _, t := range texts {
		n := EstimateTokens(t)
		if tokens+n > maxTokens && len(current) > 0 {
			batches = append(batches, current)
			current, tokens = nil, 0
		}
		current = append(current, t)
		tokens += n
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
