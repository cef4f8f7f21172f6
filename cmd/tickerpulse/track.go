package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/tickerpulse/pkg/extract"
	"github.com/pario-ai/tickerpulse/pkg/models"
	"github.com/pario-ai/tickerpulse/pkg/pipeline"
	"github.com/pario-ai/tickerpulse/pkg/scheduler"
)

const (
	modeLLM   = "llm"
	modeRegex = "regex"

	regexWorkers = 5
)

func newTrackCmd(ro *rootOptions) *cobra.Command {
	var (
		timeframe       string
		testMode        bool
		selection       string
		listSubs        bool
		mode            string
		maxRequests     int
		postLimit       int
		topComments     int
		commentsPerPost int
		workers         int
		analyze         bool
		analyzeTop      int
		show            int
	)

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Track the most mentioned stocks across subreddits",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(ro)
			if err != nil {
				return err
			}
			defer e.Close()

			if listSubs {
				printSubreddits(os.Stdout, e.cfg.Subreddits)
				return nil
			}
			subs, err := resolveSubreddits(e.cfg.Subreddits, testMode, selection)
			if err != nil {
				return err
			}
			if commentsPerPost > 0 {
				e.cfg.Filters.CommentsPerPost = commentsPerPost
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, sched, err := buildPipeline(ctx, e, mode, maxRequests)
			if err != nil {
				return err
			}
			if workers <= 0 {
				workers = regexWorkers
				if mode == modeLLM {
					workers = e.cfg.LLM.Workers
				}
			}

			fmt.Printf("Tracking %d subreddit(s), timeframe %s, %s mode\n", len(subs), models.ParseTimeframe(timeframe), mode)
			if sched != nil {
				fmt.Printf("Initial budget: %s\n", sched.Snapshot().Summary())
			}

			res, err := p.TrackHotStocks(ctx, pipeline.TrackOptions{
				Subreddits:  subs,
				Timeframe:   models.ParseTimeframe(timeframe),
				PostLimit:   postLimit,
				TopComments: topComments,
				Workers:     workers,
				AnalyzeTop:  analyzeTopN(analyze, analyzeTop),
			})
			if err != nil {
				return err
			}

			for sub, ferr := range res.Failed {
				fmt.Fprintf(os.Stderr, "warning: r/%s: %v\n", sub, ferr)
			}
			fmt.Printf("\nAnalyzed %d posts and %d comments in %d batches\n\n", res.Posts, res.Comments, res.Batches)
			if err := printRanking(os.Stdout, res.Ranked, show); err != nil {
				return err
			}
			for _, rep := range res.Sentiment {
				if err := printSentimentReport(os.Stdout, rep); err != nil {
					return err
				}
			}

			if sched != nil {
				fmt.Printf("\nBudget\n%s\n", sched.Snapshot().Detailed())
			}
			if res.BudgetExhausted {
				fmt.Println("\nDaily request budget exhausted; results are partial.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "day", "day, week or month")
	cmd.Flags().BoolVar(&testMode, "test-mode", false, "only analyze r/"+testModeSubreddit)
	cmd.Flags().StringVarP(&selection, "subreddits", "s", "", `subreddit selection, e.g. "1-3,5" (see --list-subreddits)`)
	cmd.Flags().BoolVar(&listSubs, "list-subreddits", false, "list configured subreddits and exit")
	cmd.Flags().StringVar(&mode, "mode", modeLLM, "extraction mode: llm or regex")
	cmd.Flags().IntVar(&maxRequests, "max-requests", 0, "daily request limit (default from config)")
	cmd.Flags().IntVar(&postLimit, "post-limit", pipeline.DefaultPostLimit, "posts to analyze per subreddit")
	cmd.Flags().IntVar(&topComments, "top-comments", pipeline.DefaultTopComments, "top comments to analyze per subreddit")
	cmd.Flags().IntVar(&commentsPerPost, "comments-per-post", 0, "comments fetched per post (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "subreddits processed in parallel")
	cmd.Flags().BoolVar(&analyze, "analyze-sentiment", false, "analyze sentiment for the top stocks afterwards")
	cmd.Flags().IntVar(&analyzeTop, "analyze-top-n", 3, "how many top stocks to analyze")
	cmd.Flags().IntVar(&show, "show", 10, "how many tickers to print")
	return cmd
}

func analyzeTopN(enabled bool, n int) int {
	if !enabled {
		return 0
	}
	return n
}

// buildPipeline wires a pipeline for mode. The scheduler is nil in regex mode.
func buildPipeline(ctx context.Context, e *env, mode string, limit int) (*pipeline.Pipeline, *scheduler.Scheduler, error) {
	rc, err := e.reddit()
	if err != nil {
		return nil, nil, fmt.Errorf("%w; run `tickerpulse setup`", err)
	}
	tr, err := e.tracker()
	if err != nil {
		return nil, nil, err
	}
	valid := e.validTickers(ctx)

	opts := pipeline.Options{
		Source:  rc,
		Store:   tr,
		Valid:   valid,
		Filters: e.cfg.Filters,
		Logger:  e.logger.Named("pipeline"),
	}

	var sched *scheduler.Scheduler
	switch mode {
	case modeRegex:
		opts.Extractor = extract.NewRegex(valid)
	case modeLLM:
		sched, err = e.scheduler(ctx, limit)
		if err != nil {
			return nil, nil, err
		}
		ex, err := e.llmExtractor(sched, valid)
		if err != nil {
			return nil, nil, err
		}
		opts.Extractor = ex
		opts.Budget = sched
	default:
		return nil, nil, fmt.Errorf("unknown mode %q (want %s or %s)", mode, modeLLM, modeRegex)
	}
	return pipeline.New(opts), sched, nil
}
