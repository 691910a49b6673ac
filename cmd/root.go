package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jrklein8/ILMFoodNBrew/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ilmfoodnbrew",
	Short: "Wilmington food truck schedule scraper and API",
	Long:  "Finds the newest weekly food truck tracker article, extracts the schedule, geocodes venues, and serves the result as JSON.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
