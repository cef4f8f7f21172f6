package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pario-ai/tickerpulse/pkg/config"
	"github.com/pario-ai/tickerpulse/pkg/models"
	"github.com/pario-ai/tickerpulse/pkg/pipeline"
	"github.com/pario-ai/tickerpulse/pkg/scheduler"
	"github.com/pario-ai/tickerpulse/pkg/statusapi"
)

func newServeCmd(ro *rootOptions) *cobra.Command {
	var (
		every     time.Duration
		timeframe string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the status API, optionally tracking on a schedule",
		Long: `Serves /healthz, /metrics, GET /budget and PUT /budget/limit.
Edits to budget.daily_limit in the config file are applied live.
With --every, LLM tracking runs on that interval against the same budget.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(ro)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var (
				sched *scheduler.Scheduler
				track func(context.Context)
			)
			if every > 0 {
				var p *pipeline.Pipeline
				if p, sched, err = buildPipeline(ctx, e, modeLLM, 0); err != nil {
					return err
				}
				track = func(ctx context.Context) {
					res, err := p.TrackHotStocks(ctx, pipeline.TrackOptions{
						Subreddits: e.cfg.Subreddits,
						Timeframe:  models.ParseTimeframe(timeframe),
						Workers:    e.cfg.LLM.Workers,
					})
					if err != nil {
						e.logger.Error("Scheduled tracking failed", zap.Error(err))
						return
					}
					e.logger.Info("Scheduled tracking done",
						zap.Int("tickers", len(res.Ranked)),
						zap.Int("batches", res.Batches),
						zap.Bool("budget_exhausted", res.BudgetExhausted),
					)
				}
			} else if sched, err = e.scheduler(ctx, 0); err != nil {
				return err
			}

			if fileExists(ro.configPath) {
				go func() {
					err := config.Watch(ctx, ro.configPath, e.logger.Named("config"), func(c *config.Config) {
						if err := sched.SetDailyLimit(c.Budget.DailyLimit); err != nil {
							e.logger.Warn("Daily limit not fully applied", zap.Error(err))
						}
					})
					if err != nil {
						e.logger.Warn("Config watch stopped", zap.Error(err))
					}
				}()
			}

			if every > 0 {
				go func() {
					ticker := time.NewTicker(every)
					defer ticker.Stop()
					for {
						track(ctx)
						select {
						case <-ctx.Done():
							return
						case <-ticker.C:
						}
					}
				}()
			}

			return statusapi.New(e.cfg.Status.Listen, sched, e.logger.Named("status")).ListenAndServe(ctx)
		},
	}

	cmd.Flags().DurationVar(&every, "every", 0, "run LLM tracking on this interval (0 disables)")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "day", "timeframe for scheduled tracking")
	return cmd
}
