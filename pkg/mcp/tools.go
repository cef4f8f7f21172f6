package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pario-ai/tickerpulse/pkg/models"
)

const (
	defaultTopLimit   = 10
	defaultAuditLimit = 50
	dateLayout        = "2006-01-02"
)

type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

var toolHandlers = map[string]toolHandler{
	"tickerpulse_top_stocks":   handleTopStocks,
	"tickerpulse_sentiment":    handleSentiment,
	"tickerpulse_budget":       handleBudget,
	"tickerpulse_cache_stats":  handleCacheStats,
	"tickerpulse_audit_search": handleAuditSearch,
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

var allTools = []ToolDefinition{
	{
		Name:        "tickerpulse_top_stocks",
		Description: "List today's most mentioned stock tickers for a timeframe.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timeframe": stringProp("day, week or month (default day)"),
				"limit":     map[string]any{"type": "integer", "description": "Number of tickers (default 10)"},
			},
		},
	},
	{
		Name:        "tickerpulse_sentiment",
		Description: "Show today's aggregated post sentiment for one ticker.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"ticker"},
			"properties": map[string]any{
				"ticker": stringProp("Ticker symbol, with or without $"),
			},
		},
	},
	{
		Name:        "tickerpulse_budget",
		Description: "Show today's request budget: per-model usage and remaining requests.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
	{
		Name:        "tickerpulse_cache_stats",
		Description: "Show prompt cache statistics (entries, hits, misses, hit rate).",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
	{
		Name:        "tickerpulse_audit_search",
		Description: "Search the language-model call log.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"model":      stringProp("Filter by model (optional)"),
				"outcome":    stringProp("ok, rate_limited, error or cached (optional)"),
				"since":      stringProp("Start date in YYYY-MM-DD format (optional)"),
				"request_id": stringProp("Filter by request ID (optional)"),
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: true}
}

func decodeArgs(raw json.RawMessage, into any) bool {
	if len(raw) == 0 {
		return true
	}
	return json.Unmarshal(raw, into) == nil
}

type topStocksArgs struct {
	Timeframe string `json:"timeframe"`
	Limit     int    `json:"limit"`
}

func handleTopStocks(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args topStocksArgs
	if !decodeArgs(raw, &args) {
		return errorResult("invalid arguments")
	}
	if args.Limit <= 0 {
		args.Limit = defaultTopLimit
	}
	tf := models.ParseTimeframe(args.Timeframe)
	rows, err := s.tracker.TopStocks(ctx, tf, args.Limit)
	if err != nil {
		return errorResult("Error fetching top stocks: " + err.Error())
	}
	return textResult(formatTopStocks(tf, rows))
}

type sentimentArgs struct {
	Ticker string `json:"ticker"`
}

func handleSentiment(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args sentimentArgs
	if !decodeArgs(raw, &args) {
		return errorResult("invalid arguments")
	}
	ticker := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(args.Ticker), "$"))
	if ticker == "" {
		return errorResult("ticker is required")
	}
	stats, ok, err := s.tracker.TickerSentiment(ctx, ticker)
	if err != nil {
		return errorResult("Error fetching sentiment: " + err.Error())
	}
	if !ok {
		return textResult("No sentiment recorded today for $" + ticker + ".")
	}
	return textResult(formatSentiment(stats))
}

func handleBudget(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.budget == nil {
		return textResult("Budget tracking is not configured.")
	}
	snap, err := s.budget.Snapshot(ctx)
	if err != nil {
		return errorResult("Error reading budget: " + err.Error())
	}
	return textResult(formatBudget(snap))
}

func handleCacheStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.cache.Stats()
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}

type auditSearchArgs struct {
	Model     string `json:"model"`
	Outcome   string `json:"outcome"`
	Since     string `json:"since"`
	RequestID string `json:"request_id"`
}

func handleAuditSearch(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.auditor == nil {
		return textResult("Audit logging is not configured.")
	}
	var args auditSearchArgs
	if !decodeArgs(raw, &args) {
		return errorResult("invalid arguments")
	}

	opts := models.AuditQueryOpts{
		Model:     args.Model,
		Outcome:   args.Outcome,
		RequestID: args.RequestID,
		Limit:     defaultAuditLimit,
	}
	if args.Since != "" {
		t, err := time.Parse(dateLayout, args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		opts.Since = t
	}

	entries, err := s.auditor.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching audit log: " + err.Error())
	}
	return textResult(formatAuditEntries(entries))
}
