package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pario-ai/tickerpulse/pkg/models"
	"github.com/pario-ai/tickerpulse/pkg/pipeline"
	"github.com/pario-ai/tickerpulse/pkg/sentiment"
)

const testModeSubreddit = "wallstreetbets"

// resolveSubreddits applies --test-mode and --subreddits to the configured list.
func resolveSubreddits(all []string, testMode bool, selection string) ([]string, error) {
	if testMode {
		return []string{testModeSubreddit}, nil
	}
	if selection == "" {
		return all, nil
	}
	picked, warnings := pipeline.ParseSubredditSelection(selection, all)
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	if len(picked) == 0 {
		return nil, fmt.Errorf("no valid subreddits selected by %q", selection)
	}
	return picked, nil
}

func printSubreddits(w io.Writer, subs []string) {
	fmt.Fprintln(w, "Subreddits:")
	for i, s := range subs {
		fmt.Fprintf(w, "  %2d. r/%s\n", i+1, s)
	}
}

func printRanking(w io.Writer, ranked []models.TickerCount, n int) error {
	if len(ranked) == 0 {
		fmt.Fprintln(w, "No tickers found.")
		return nil
	}
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTICKER\tMENTIONS")
	for i, tc := range ranked {
		fmt.Fprintf(tw, "%d\t$%s\t%d\n", i+1, tc.Ticker, tc.Count)
	}
	return tw.Flush()
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func printSentimentStats(w io.Writer, st models.SentimentStats) error {
	fmt.Fprintf(w, "Posts analyzed:     %d\n", st.Total)
	fmt.Fprintf(w, "Overall sentiment:  %.3f (%s)\n\n", st.Average, sentiment.Label(st.Average))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SENTIMENT\tCOUNT\tPERCENT")
	fmt.Fprintf(tw, "Positive\t%d\t%.1f%%\n", st.Positive, pct(st.Positive, st.Total))
	fmt.Fprintf(tw, "Neutral\t%d\t%.1f%%\n", st.Neutral, pct(st.Neutral, st.Total))
	fmt.Fprintf(tw, "Negative\t%d\t%.1f%%\n", st.Negative, pct(st.Negative, st.Total))
	return tw.Flush()
}

func printSentimentReport(w io.Writer, rep pipeline.SentimentReport) error {
	fmt.Fprintf(w, "\nSentiment for $%s\n%s\n", rep.Ticker, strings.Repeat("=", 40))
	if rep.Stats.Total == 0 {
		fmt.Fprintf(w, "No recent mentions found for $%s.\n", rep.Ticker)
		return nil
	}
	if err := printSentimentStats(w, rep.Stats); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBREDDIT\tMENTIONS")
	for i, sc := range rep.BySubreddit {
		if i == 5 {
			break
		}
		fmt.Fprintf(tw, "r/%s\t%d\n", sc.Subreddit, sc.Count)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nTop posts:")
	for i, p := range rep.TopPosts {
		fmt.Fprintf(w, "%d. [%s] %+.3f  %s\n", i+1, p.Subreddit, p.Score, truncate(p.Title, 100))
	}
	for sub, err := range rep.Failed {
		fmt.Fprintf(w, "warning: r/%s: %v\n", sub, err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
