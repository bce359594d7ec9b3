package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/gagstock/tracker"
)

var (
	gateAt     string
	gateConfig string
)

var gateCmd = &cobra.Command{
	Use:   "gate [--at RFC3339]",
	Short: "Show whether a scrape is permitted at a time, and the next trigger and window.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := tracker.LoadConfigFile(gateConfig)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if gateAt != "" {
			if now, err = time.Parse(time.RFC3339, gateAt); err != nil {
				return fmt.Errorf("gate: --at: %w", err)
			}
		}
		spec, err := cfg.ScheduleSpec()
		if err != nil {
			return err
		}
		schedule, err := tracker.ParseSchedule(spec)
		if err != nil {
			return err
		}
		g := cfg.GateSpec()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "at:        %s\n", now.UTC().Format(time.RFC3339))
		fmt.Fprintf(out, "permitted: %t\n", g.IsPermitted(now))
		fmt.Fprintf(out, "next open: %s\n", g.Next(now).UTC().Format(time.RFC3339))
		fmt.Fprintf(out, "next run:  %s\n", schedule.Next(now).UTC().Format(time.RFC3339))
		return nil
	},
}

func init() {
	gateCmd.Flags().StringVar(&gateAt, "at", "", "instant to evaluate (default now)")
	gateCmd.Flags().StringVar(&gateConfig, "config", env("GAGSTOCK_CONFIG", ""), "YAML configuration file")
	rootCmd.AddCommand(gateCmd)
}
