package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/tickerpulse/pkg/budget"
	"github.com/pario-ai/tickerpulse/pkg/reddit"
)

const redditAppsURL = "https://www.reddit.com/prefs/apps"

var errSetupIncomplete = errors.New("setup incomplete")

// check is one line of the setup report.
type check struct {
	name     string
	ok       bool
	required bool
	detail   string
}

func (c check) String() string {
	mark := "ok"
	switch {
	case !c.ok && c.required:
		mark = "MISSING"
	case !c.ok:
		mark = "warn"
	}
	return fmt.Sprintf("[%-7s] %-22s %s", mark, c.name, c.detail)
}

func newSetupCmd(ro *rootOptions) *cobra.Command {
	var online bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Check credentials and local state",
		Long: `Reports what tickerpulse needs before it can run.

Reddit credentials come from a "script" app at ` + redditAppsURL + `.
Put them in .env or the config file:

  REDDIT_CLIENT_ID=...
  REDDIT_CLIENT_SECRET=...
  REDDIT_USER_AGENT=tickerpulse/1.0 by u/yourname
  OPENROUTER_API_KEY=...   # only for --mode llm`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(ro)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			checks := []check{
				{name: "config file", ok: fileExists(ro.configPath), detail: ro.configPath},
				{name: ".env file", ok: fileExists(".env"), detail: "optional, read before the config"},
				{
					name: "reddit credentials", required: true,
					ok:     e.cfg.Reddit.ClientID != "" && e.cfg.Reddit.ClientSecret != "",
					detail: "REDDIT_CLIENT_ID / REDDIT_CLIENT_SECRET",
				},
				{
					name:   "reddit user agent",
					ok:     e.cfg.Reddit.UserAgent != "" && e.cfg.Reddit.UserAgent != reddit.DefaultUserAgent,
					detail: "set REDDIT_USER_AGENT to identify yourself",
				},
				{
					name:   "openrouter api key",
					ok:     e.cfg.LLM.APIKey != "",
					detail: "needed for --mode llm only",
				},
				{name: "ticker cache", ok: fileExists(e.cfg.Tickers.CachePath), detail: e.cfg.Tickers.CachePath + " (fetched on first run)"},
				budgetCheck(ctx, e),
			}
			if online && checks[2].ok {
				checks = append(checks, redditCheck(ctx, e))
			}

			failed := false
			for _, c := range checks {
				fmt.Println(c)
				if c.required && !c.ok {
					failed = true
				}
			}
			if failed {
				fmt.Printf("\nCreate a script app at %s and export its credentials.\n", redditAppsURL)
				return errSetupIncomplete
			}
			fmt.Println("\nReady. Try: tickerpulse track --test-mode --mode regex")
			return nil
		},
	}

	cmd.Flags().BoolVar(&online, "online", false, "also fetch one post from Reddit to verify the credentials")
	return cmd
}

func budgetCheck(ctx context.Context, e *env) check {
	c := check{name: "budget store", required: true, detail: e.cfg.Budget.Store}
	store, err := e.budgetStore()
	if err != nil {
		c.detail = err.Error()
		return c
	}
	rec, err := store.Load(ctx)
	switch {
	case errors.Is(err, budget.ErrNoRecord):
		c.ok = true
		c.detail = "no usage recorded yet"
	case err != nil:
		c.detail = err.Error()
	default:
		c.ok = true
		c.detail = fmt.Sprintf("%s: %d/%d used", rec.Date, rec.Total, rec.Limit)
	}
	return c
}

func redditCheck(ctx context.Context, e *env) check {
	c := check{name: "reddit api", required: true}
	rc, err := e.reddit()
	if err != nil {
		c.detail = err.Error()
		return c
	}
	if _, err := rc.Hot(ctx, testModeSubreddit, 1); err != nil {
		c.detail = err.Error()
		return c
	}
	c.ok = true
	c.detail = "authenticated"
	return c
}
