package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newBudgetCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show or change the daily request budget",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show today's usage per model",
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
			fmt.Printf("Date: %s\n%s\nRemaining: %d\n", snap.Date, snap.Detailed(), snap.Remaining)
			return nil
		},
	}

	var server string
	setLimitCmd := &cobra.Command{
		Use:   "set-limit N",
		Short: "Change the daily limit of a running `tickerpulse serve`",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid limit %q: %w", args[0], err)
			}
			if server == "" {
				e, err := newEnv(ro)
				if err != nil {
					return err
				}
				defer e.Close()
				server = statusURL(e.cfg.Status.Listen)
			}
			return setRemoteLimit(cmd.Context(), server, limit)
		},
	}
	setLimitCmd.Flags().StringVar(&server, "server", "", "status server URL (default from status.listen)")

	cmd.AddCommand(statusCmd, setLimitCmd)
	return cmd
}

// statusURL turns a listen address such as ":9464" into a local URL.
func statusURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		listen = "localhost" + listen
	}
	return "http://" + listen
}

func setRemoteLimit(ctx context.Context, server string, limit int) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	body, _ := json.Marshal(map[string]int{"limit": limit})
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, strings.TrimRight(server, "/")+"/budget/limit", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("reach status server (is `tickerpulse serve` running?): %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("set limit: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var out struct {
		Limit     int    `json:"limit"`
		Remaining int    `json:"remaining"`
		Warning   string `json:"warning"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	fmt.Printf("Daily limit set to %d (%d remaining today).\n", out.Limit, out.Remaining)
	if out.Warning != "" {
		fmt.Printf("warning: %s\n", out.Warning)
	}
	return nil
}
