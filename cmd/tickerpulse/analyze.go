package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/tickerpulse/pkg/models"
	"github.com/pario-ai/tickerpulse/pkg/pipeline"
)

func newAnalyzeCmd(ro *rootOptions) *cobra.Command {
	var (
		testMode    bool
		selection   string
		mode        string
		withContext bool
		timeframe   string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "analyze TICKER",
		Short: "Analyze Reddit sentiment for one stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(ro)
			if err != nil {
				return err
			}
			defer e.Close()

			subs, err := resolveSubreddits(e.cfg.Subreddits, testMode, selection)
			if err != nil {
				return err
			}
			if withContext {
				mode = modeLLM
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, sched, err := buildPipeline(ctx, e, mode, 0)
			if err != nil {
				return err
			}

			tf := models.TimeframeWeek
			if timeframe != "" {
				tf = models.ParseTimeframe(timeframe)
			}
			rep, err := p.AnalyzeSentiment(ctx, args[0], pipeline.AnalyzeOptions{
				Subreddits:  subs,
				Timeframe:   tf,
				PostLimit:   limit,
				WithContext: withContext,
			})
			if err != nil {
				return err
			}
			if err := printSentimentReport(os.Stdout, rep); err != nil {
				return err
			}
			if sched != nil {
				fmt.Printf("\nBudget: %s\n", sched.Snapshot().Summary())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&testMode, "test-mode", false, "only analyze r/"+testModeSubreddit)
	cmd.Flags().StringVarP(&selection, "subreddits", "s", "", `subreddit selection, e.g. "1-3,5"`)
	cmd.Flags().StringVar(&mode, "mode", modeRegex, "extraction mode: llm or regex")
	cmd.Flags().BoolVar(&withContext, "context", false, "blend scores with a model's reading of the discussion (implies --mode llm)")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "week", "day, week or month")
	cmd.Flags().IntVar(&limit, "limit", pipeline.DefaultSearchLimit, "posts searched per subreddit")
	return cmd
}
