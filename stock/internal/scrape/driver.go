// Package scrape drives one browser session per attempt through the stock
// page load sequence and hands the serialised DOM to the extractor.
// Transient failures are retried a bounded number of times.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hazyhaar/gagstock/stock/internal/extract"
	"github.com/hazyhaar/gagstock/stock/inventory"
)

var tracer = otel.Tracer("gagstock/stock/scrape")

// Session is the browser surface the driver needs.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitElements(ctx context.Context, selectors ...string) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Launcher opens a fresh, exclusively owned Session.
type Launcher func(ctx context.Context) (Session, error)

// Config tunes the load sequence.
type Config struct {
	// Attempts is the total number of tries. Default: 3.
	Attempts int
	// RetryDelay is the fixed pause between attempts. Default: 5s.
	RetryDelay time.Duration
	// Timeout bounds each browser operation. Default: 30s.
	Timeout time.Duration
	// PollInterval is the readiness poll period. Default: 1s.
	PollInterval time.Duration
	// Settle is the pause after readiness before serialising. Default: 1s,
	// negative disables it.
	Settle time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.Settle < 0 {
		c.Settle = 0
	} else if c.Settle == 0 {
		c.Settle = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Driver fetches raw stock from the page.
type Driver struct {
	cfg    Config
	launch Launcher
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Driver opening sessions with launch.
func New(launch Launcher, cfg Config) *Driver {
	cfg.defaults()
	return &Driver{cfg: cfg, launch: launch, sleep: sleepCtx}
}

// Fetch runs the load sequence against url until it succeeds or the
// attempts run out. An empty result is a success.
func (d *Driver) Fetch(ctx context.Context, url string) (inventory.Raw, error) {
	ctx, span := tracer.Start(ctx, "scrape.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	log := d.cfg.Logger
	var lastErr error
	for attempt := 1; attempt <= d.cfg.Attempts; attempt++ {
		raw, err := d.attempt(ctx, url, attempt)
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", attempt), attribute.Int("records", raw.Count()))
			return raw, nil
		}
		lastErr = err
		log.Warn("scrape: attempt failed", "attempt", attempt, "of", d.cfg.Attempts, "error", err)

		if attempt == d.cfg.Attempts {
			break
		}
		if err := d.sleep(ctx, d.cfg.RetryDelay); err != nil {
			lastErr = err
			break
		}
	}
	err := fmt.Errorf("scrape: fetch %s: %w", url, lastErr)
	span.RecordError(err)
	span.SetStatus(codes.Error, "fetch failed")
	return nil, err
}

func (d *Driver) attempt(ctx context.Context, url string, n int) (inventory.Raw, error) {
	log := d.cfg.Logger.With("attempt", n)

	sess, err := d.launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("scrape: release browser", "error", err)
		}
	}()

	if err := d.bounded(ctx, func(ctx context.Context) error { return sess.Navigate(ctx, url) }); err != nil {
		return nil, err
	}

	if err := d.bounded(ctx, func(ctx context.Context) error {
		return sess.WaitElements(ctx, extract.Selectors...)
	}); err != nil {
		log.Warn("scrape: selectors not found, continuing", "error", err)
	}

	if err := d.bounded(ctx, func(ctx context.Context) error { return d.waitReady(ctx, sess) }); err != nil {
		log.Warn("scrape: sections not ready, continuing", "error", err)
	}

	if err := d.sleep(ctx, d.cfg.Settle); err != nil {
		return nil, err
	}

	var doc string
	if err := d.bounded(ctx, func(ctx context.Context) (err error) {
		doc, err = sess.HTML(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	raw, err := extract.ParseString(doc, d.cfg.Logger)
	if err != nil {
		return nil, err
	}
	if raw.Count() == 0 {
		log.Warn("scrape: page produced no items")
	}
	return raw, nil
}

// waitReady polls the serialised DOM until the three sections render.
func (d *Driver) waitReady(ctx context.Context, sess Session) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		doc, err := sess.HTML(ctx)
		if err == nil && extract.ReadyString(doc) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("readiness: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// bounded runs fn under the per-operation timeout.
func (d *Driver) bounded(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()
	return fn(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
