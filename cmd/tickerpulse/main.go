package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	configPath string
	verbose    bool
}

func main() {
	ro := &rootOptions{}
	root := &cobra.Command{
		Use:           "tickerpulse",
		Short:         "Reddit stock mention and sentiment tracker",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&ro.configPath, "config", "c", "tickerpulse.yaml", "path to config file")
	root.PersistentFlags().BoolVarP(&ro.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newTrackCmd(ro),
		newAnalyzeCmd(ro),
		newBudgetCmd(ro),
		newStatsCmd(ro),
		newModelsCmd(ro),
		newCacheCmd(ro),
		newAuditCmd(ro),
		newServeCmd(ro),
		newMCPCmd(ro),
		newSetupCmd(ro),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
