package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/tickerpulse/pkg/mcp"
)

func newMCPCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve tracked data as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(ro)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tr, err := e.tracker()
			if err != nil {
				return err
			}
			view, err := e.budgetView()
			if err != nil {
				return err
			}

			opts := mcp.Options{
				Tracker: tr,
				Budget:  view,
				Version: version,
				Logger:  e.logger.Named("mcp"),
			}
			if e.cfg.Cache.Enabled {
				c, err := e.promptCache()
				if err != nil {
					return err
				}
				opts.Cache = c
			}
			if e.cfg.Audit.Enabled {
				l, err := e.auditLog()
				if err != nil {
					return err
				}
				opts.Auditor = l
			}

			return mcp.New(opts).Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
