package extract

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/pario-ai/tickerpulse/pkg/tickers"
)

var (
	tickerPattern = regexp.MustCompile(`\b[A-Z]{1,5}\b`)
	dollarPattern = regexp.MustCompile(`\$([A-Za-z]{1,5})\b`)
)

// commonWords are all-caps tokens that are almost never meant as tickers.
var commonWords = tickers.NewSet(
	"THE", "AND", "FOR", "ARE", "BUT", "NOT", "YOU", "ALL", "CAN", "HER",
	"ONE", "OUR", "OUT", "DAY", "GET", "HAS", "HIM", "HIS", "HOW", "WAS",
	"ITS", "MAY", "NEW", "NOW", "OLD", "SEE", "TWO", "WAY", "WHO", "BOY",
	"DID", "LET", "PUT", "SAY", "SHE", "TOO", "USE", "WON", "YES", "YET",
	"YOLO", "LMAO", "IMO", "TBH", "IDK", "AMA", "ELI", "TIL", "PSA", "EDIT",
	"TLDR", "NSFW", "CEO", "CFO", "IPO", "ETF", "USD", "USA", "SEC", "FDA",
	"ATH", "ATL", "EOD", "AH", "PM", "DD", "TA", "FA", "WSB", "OP", "LOL",
	"WTF", "FYI", "ASAP", "BTW", "TITLE", "BODY",
	"I", "A",
)

// Regex extracts tickers by pattern, dropping common words and, when a valid
// set is given, anything not in it.
type Regex struct {
	valid tickers.Set
}

// NewRegex creates a Regex extractor. An empty valid set disables validation.
func NewRegex(valid tickers.Set) *Regex {
	return &Regex{valid: valid}
}

// Tickers returns the distinct tickers in text, sorted. $ notation is
// accepted in any case; bare symbols must be upper case.
func (r *Regex) Tickers(text string) []string {
	seen := map[string]struct{}{}
	add := func(sym string) {
		if commonWords.Contains(sym) || !r.valid.Allows(sym) {
			return
		}
		seen[sym] = struct{}{}
	}
	for _, m := range tickerPattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range dollarPattern.FindAllStringSubmatch(text, -1) {
		add(strings.ToUpper(m[1]))
	}

	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Extract counts each ticker once per text it appears in.
func (r *Regex) Extract(ctx context.Context, texts []string) (Result, error) {
	res := Result{Tickers: map[string]TickerInfo{}}
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		for _, sym := range r.Tickers(text) {
			info := res.Tickers[sym]
			info.Mentions++
			res.Tickers[sym] = info
		}
	}
	return res, nil
}
