package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/pario-ai/tickerpulse/pkg/models"
	"github.com/pario-ai/tickerpulse/pkg/scheduler"
	"github.com/pario-ai/tickerpulse/pkg/sentiment"
)

func formatTopStocks(tf models.Timeframe, rows []models.TickerCount) string {
	if len(rows) == 0 {
		return fmt.Sprintf("No mentions tracked today for timeframe %s.", tf)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Top stocks (%s)\n", tf)
	fmt.Fprintf(&b, "%4s  %-8s %8s\n", "Rank", "Ticker", "Mentions")
	b.WriteString(strings.Repeat("-", 22) + "\n")
	for i, r := range rows {
		fmt.Fprintf(&b, "%4d  %-8s %8d\n", i+1, "$"+r.Ticker, r.Count)
	}
	return b.String()
}

func formatSentiment(st models.SentimentStats) string {
	return fmt.Sprintf("Sentiment for $%s\n"+
		"  Posts:    %d\n"+
		"  Average:  %.3f (%s)\n"+
		"  Positive: %d\n"+
		"  Neutral:  %d\n"+
		"  Negative: %d\n",
		st.Ticker, st.Total, st.Average, sentiment.Label(st.Average),
		st.Positive, st.Neutral, st.Negative)
}

func formatBudget(sn scheduler.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Budget for %s (%d remaining)\n%s\n", sn.Date, sn.Remaining, sn.Detailed())
	for _, m := range sn.Models {
		if d, ok := sn.Cooldowns[m]; ok {
			fmt.Fprintf(&b, "  cooling down: %s for %s\n", scheduler.ShortName(m), d.Round(time.Second))
		}
	}
	return b.String()
}

func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate)
}

func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-24s %-12s %5s %8s %-19s\n",
		"Request ID", "Model", "Outcome", "Batch", "Latency", "Time")
	b.WriteString(strings.Repeat("-", 110) + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-36s %-24s %-12s %5d %6dms %-19s\n",
			e.RequestID, scheduler.ShortName(e.Model), e.Outcome, e.BatchSize,
			e.LatencyMs, e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}
