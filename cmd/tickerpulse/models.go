package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/tickerpulse/pkg/scheduler"
)

func newModelsCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model pool and configured subreddits",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(ro)
			if err != nil {
				return err
			}
			defer e.Close()

			view, err := e.budgetView()
			if err != nil {
				return err
			}
			snap, err := view.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			// Cool-downs are held in memory by a running serve, if any.
			cds := liveCooldowns(cmd.Context(), statusURL(e.cfg.Status.Listen))

			fmt.Printf("Model pool (%d models, one request per %s each):\n", len(snap.Models), snap.PacingInterval)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tMODEL\tTODAY\tCOOL-DOWN")
			for i, m := range snap.Models {
				cd := "-"
				if d, ok := cds[m]; ok {
					cd = d.String()
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", i+1, scheduler.ShortName(m), snap.Requests[m], cd)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Printf("\nBudget: %s\n\n", snap.Summary())
			printSubreddits(os.Stdout, e.cfg.Subreddits)
			return nil
		},
	}
}

// liveCooldowns asks the status server for active cool-downs. It returns nil
// when no server answers.
func liveCooldowns(ctx context.Context, server string) map[string]time.Duration {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(server, "/")+"/budget", nil)
	if err != nil {
		return nil
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var out struct {
		Cooldowns map[string]float64 `json:"cooldown_seconds"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil
	}
	cds := make(map[string]time.Duration, len(out.Cooldowns))
	for m, s := range out.Cooldowns {
		cds[m] = time.Duration(s * float64(time.Second)).Round(time.Second)
	}
	return cds
}
