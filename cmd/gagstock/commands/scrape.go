package commands

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/gagstock/stock"
	"github.com/hazyhaar/gagstock/tracker"
)

var scrapeConfig string

var scrapeCmd = &cobra.Command{
	Use:   "scrape [url]",
	Short: "Scrape the stock page once, ignoring the schedule, and print the snapshot as JSON.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := tracker.LoadConfigFile(scrapeConfig)
		if err != nil {
			return err
		}
		url := cfg.Stock.URL
		if len(args) == 1 {
			url = args[0]
		}

		s := stock.NewBrowserScraper(cfg.BrowserSpec(), cfg.ScrapeSpec(), slog.Default())
		snap, err := stock.Once(cmd.Context(), s, url)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeConfig, "config", env("GAGSTOCK_CONFIG", ""), "YAML configuration file")
	rootCmd.AddCommand(scrapeCmd)
}
