package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pario-ai/tickerpulse/pkg/models"
)

func TestResolveSubreddits(t *testing.T) {
	all := []string{"wallstreetbets", "stocks", "investing", "options"}

	got, err := resolveSubreddits(all, true, "2-3")
	if err != nil || len(got) != 1 || got[0] != testModeSubreddit {
		t.Errorf("test mode = %v, %v", got, err)
	}

	got, err = resolveSubreddits(all, false, "")
	if err != nil || len(got) != len(all) {
		t.Errorf("no selection = %v, %v", got, err)
	}

	got, err = resolveSubreddits(all, false, "2-3")
	if err != nil || strings.Join(got, ",") != "stocks,investing" {
		t.Errorf("2-3 = %v, %v", got, err)
	}

	if _, err := resolveSubreddits(all, false, "9"); err == nil {
		t.Error("expected error for empty selection")
	}
}

func TestStatusURL(t *testing.T) {
	tests := map[string]string{
		":9464":          "http://localhost:9464",
		"127.0.0.1:8080": "http://127.0.0.1:8080",
	}
	for in, want := range tests {
		if got := statusURL(in); got != want {
			t.Errorf("statusURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("ünïcödé title", 5); got != "ünïcö..." {
		t.Errorf("got %q", got)
	}
}

func TestAnalyzeTopN(t *testing.T) {
	if analyzeTopN(false, 3) != 0 || analyzeTopN(true, 3) != 3 {
		t.Error("analyzeTopN ignores the enable flag")
	}
}

func TestPrintRanking(t *testing.T) {
	var buf bytes.Buffer
	ranked := []models.TickerCount{{Ticker: "NVDA", Count: 9}, {Ticker: "AMD", Count: 4}, {Ticker: "TSLA", Count: 1}}
	if err := printRanking(&buf, ranked, 2); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "$NVDA") || !strings.Contains(out, "$AMD") || strings.Contains(out, "TSLA") {
		t.Errorf("unexpected ranking output:\n%s", out)
	}
}

func TestFormatAudit(t *testing.T) {
	out := formatAuditEntries([]models.AuditEntry{{
		RequestID: "req-1", Model: "vendor/model-a:free", Outcome: models.OutcomeRateLimited,
		BatchSize: 2, LatencyMs: 80, CreatedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}})
	if !strings.Contains(out, "model-a:free") || strings.Contains(out, "vendor/") {
		t.Errorf("model not shortened:\n%s", out)
	}

	out = formatAuditStats([]models.AuditStat{{Model: "m", Day: "2026-10-19", Count: 5, RateLimited: 1}})
	if !strings.Contains(out, "2026-10-19") {
		t.Errorf("unexpected stats output:\n%s", out)
	}
	if formatAuditEntries(nil) != "No audit entries found.\n" {
		t.Error("empty entries message")
	}
}

func TestCheckString(t *testing.T) {
	if s := (check{name: "x", ok: false, required: true}).String(); !strings.Contains(s, "MISSING") {
		t.Errorf("got %q", s)
	}
	if s := (check{name: "x", ok: false}).String(); !strings.Contains(s, "warn") {
		t.Errorf("got %q", s)
	}
	if s := (check{name: "x", ok: true, required: true}).String(); !strings.Contains(s, "[ok") {
		t.Errorf("got %q", s)
	}
}

func TestLiveCooldowns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/budget" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"limit":100,"cooldown_seconds":{"vendor/b:free":59.6}}`))
	}))
	defer srv.Close()

	cds := liveCooldowns(context.Background(), srv.URL)
	if got := cds["vendor/b:free"]; got != time.Minute {
		t.Errorf("cool-down = %v, want 1m0s", got)
	}

	srv.Close()
	if cds := liveCooldowns(context.Background(), srv.URL); cds != nil {
		t.Errorf("expected nil without a server, got %v", cds)
	}
}
