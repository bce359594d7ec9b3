package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/gagstock/tracker"
)

var serveConfig string

var serveCmd = &cobra.Command{
	Use:   "serve [--config gagstock.yaml]",
	Short: "Run the tracker: scheduled scrapes, weather polling, HTTP, WebSocket and MCP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := slog.Default()

		cfg, err := tracker.LoadConfigFile(serveConfig)
		if err != nil {
			return err
		}
		t, err := tracker.New(cfg, tracker.WithLogger(logger))
		if err != nil {
			return err
		}
		defer t.Close()

		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           t.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errc := make(chan error, 1)
		go func() {
			logger.Info("gagstock: listening", "addr", cfg.Listen, "stock_url", cfg.Stock.URL)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("serve: %w", err)
			}
			close(errc)
		}()

		runCtx, stop := context.WithCancel(ctx)
		defer stop()
		done := make(chan struct{})
		go func() {
			defer close(done)
			t.Run(runCtx)
		}()

		select {
		case <-ctx.Done():
			logger.Info("gagstock: shutting down")
		case err = <-errc:
		}
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("gagstock: http shutdown", "error", serr)
		}
		<-done
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveConfig, "config", env("GAGSTOCK_CONFIG", ""), "YAML configuration file")
	rootCmd.AddCommand(serveCmd)
}
