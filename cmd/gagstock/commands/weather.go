package commands

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/gagstock/weather"
)

var weatherURL string

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Fetch the current weather once and print it as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := weather.NewClient(weatherURL, weather.WithClientLogger(slog.Default()))
		payload, err := c.Fetch(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(weather.FromPayload(payload, time.Now()))
	},
}

func init() {
	weatherCmd.Flags().StringVar(&weatherURL, "url", env("WEATHER_URL", weather.DefaultURL), "weather API endpoint")
	rootCmd.AddCommand(weatherCmd)
}
