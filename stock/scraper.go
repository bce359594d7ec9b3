package stock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/gagstock/stock/internal/browser"
	"github.com/hazyhaar/gagstock/stock/internal/scrape"
	"github.com/hazyhaar/gagstock/stock/inventory"
)

// BrowserConfig selects and shapes the Chrome instance.
type BrowserConfig struct {
	RemoteURL        string
	Bin              string
	NoSandbox        bool
	DisableStealth   bool
	UserAgent        string
	Width            int
	Height           int
	ResourceBlocking []string
}

// ScrapeConfig tunes the page load sequence and retries.
type ScrapeConfig struct {
	Attempts     int
	RetryDelay   time.Duration
	Timeout      time.Duration
	PollInterval time.Duration
	Settle       time.Duration
}

// NewBrowserScraper returns a Scraper that launches a fresh headless
// Chrome for every attempt and always tears it down.
func NewBrowserScraper(bc BrowserConfig, sc ScrapeConfig, logger *slog.Logger) Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	launch := func(ctx context.Context) (scrape.Session, error) {
		s, err := browser.Launch(ctx, browser.Config{
			RemoteURL:        bc.RemoteURL,
			Bin:              bc.Bin,
			NoSandbox:        bc.NoSandbox,
			DisableStealth:   bc.DisableStealth,
			UserAgent:        bc.UserAgent,
			Width:            bc.Width,
			Height:           bc.Height,
			ResourceBlocking: bc.ResourceBlocking,
			Logger:           logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	d := scrape.New(launch, scrape.Config{
		Attempts:     sc.Attempts,
		RetryDelay:   sc.RetryDelay,
		Timeout:      sc.Timeout,
		PollInterval: sc.PollInterval,
		Settle:       sc.Settle,
		Logger:       logger,
	})
	return ScraperFunc(d.Fetch)
}

// Once scrapes url immediately, bypassing the gate and cooldown, and
// returns the normalised snapshot.
func Once(ctx context.Context, s Scraper, url string) (inventory.Snapshot, error) {
	raw, err := s.FetchStock(ctx, url)
	if err != nil {
		return inventory.Empty(), err
	}
	if !raw.HasAll() {
		return inventory.Empty(), fmt.Errorf("stock: result missing categories")
	}
	return inventory.Aggregate(raw), nil
}
