package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pario-ai/tickerpulse/pkg/models"
)

func newStatsCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stored mention and sentiment statistics for today",
	}

	var (
		timeframe string
		limit     int
	)
	topCmd := &cobra.Command{
		Use:   "top",
		Short: "Most mentioned tickers today",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(ro)
			if err != nil {
				return err
			}
			defer e.Close()

			tr, err := e.tracker()
			if err != nil {
				return err
			}
			top, err := tr.TopStocks(context.Background(), models.ParseTimeframe(timeframe), limit)
			if err != nil {
				return err
			}
			return printRanking(os.Stdout, top, limit)
		},
	}
	topCmd.Flags().StringVarP(&timeframe, "timeframe", "t", "day", "day, week or month")
	topCmd.Flags().IntVar(&limit, "limit", 10, "how many tickers")

	sentimentCmd := &cobra.Command{
		Use:   "sentiment TICKER",
		Short: "Stored sentiment for a ticker today",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(ro)
			if err != nil {
				return err
			}
			defer e.Close()

			tr, err := e.tracker()
			if err != nil {
				return err
			}
			ticker := strings.ToUpper(strings.TrimPrefix(args[0], "$"))
			st, ok, err := tr.TickerSentiment(context.Background(), ticker)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("No sentiment recorded for $%s today. Run `tickerpulse analyze %s` first.\n", ticker, ticker)
				return nil
			}
			fmt.Printf("$%s\n", ticker)
			return printSentimentStats(os.Stdout, st)
		},
	}

	cmd.AddCommand(topCmd, sentimentCmd)
	return cmd
}
