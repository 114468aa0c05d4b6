package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stagepass-core",
	Short: "Traffic-control core for the stagepass ticketing backend",
	Long: `stagepass-core fronts the ticketing API with admission control
(sliding-window rate limits adapted to system health) and guards
outbound dependencies with circuit breakers, retries and caps.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML)")
	rootCmd.AddCommand(serveCmd)
}
