package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scrapePrint bool

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one scrape of the weekly tracker article",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "scrape")
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := env.Pipeline.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "scrape")
		}

		zap.L().Info("scrape complete",
			zap.String("date_range", data.DateRange),
			zap.Int("trucks", len(data.Trucks)),
			zap.Int("appearances", len(data.Appearances)),
			zap.String("dataset", cfg.Data.Path),
		)

		if scrapePrint {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		}
		return nil
	},
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapePrint, "print", false, "print the dataset JSON to stdout")
	rootCmd.AddCommand(scrapeCmd)
}
