// Package stock schedules, runs and validates stock scrapes. A Pipeline
// combines the wall-clock Gate, a duplicate-run cooldown and a Scraper,
// and turns the scraper output into a normalised inventory.Snapshot.
package stock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hazyhaar/gagstock/stock/inventory"
)

var tracer = otel.Tracer("gagstock/stock")

// DefaultURL is the stock page scraped by default.
const DefaultURL = "https://arcaiuz.com/grow-a-garden-stock"

// Scraper fetches the raw page content.
type Scraper interface {
	FetchStock(ctx context.Context, url string) (inventory.Raw, error)
}

// ScraperFunc adapts a function to Scraper.
type ScraperFunc func(ctx context.Context, url string) (inventory.Raw, error)

func (f ScraperFunc) FetchStock(ctx context.Context, url string) (inventory.Raw, error) {
	return f(ctx, url)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithGate overrides DefaultGate.
func WithGate(g Gate) Option {
	return func(p *Pipeline) { p.gate = g }
}

// WithCooldown sets the minimum spacing between successful runs. Default: 60s.
func WithCooldown(d time.Duration) Option {
	return func(p *Pipeline) { p.cooldown = d }
}

// WithURL overrides DefaultURL.
func WithURL(url string) Option {
	return func(p *Pipeline) { p.url = url }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// Pipeline is the single stock orchestrator of a process.
type Pipeline struct {
	scraper  Scraper
	gate     Gate
	cooldown time.Duration
	url      string
	now      func() time.Time
	logger   *slog.Logger

	mu          sync.Mutex
	lastSuccess time.Time
}

// NewPipeline creates a Pipeline around scraper.
func NewPipeline(scraper Scraper, opts ...Option) *Pipeline {
	p := &Pipeline{
		scraper:  scraper,
		gate:     DefaultGate(),
		cooldown: 60 * time.Second,
		url:      DefaultURL,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Run performs one guarded scrape. It returns nil when the gate is closed
// or a successful run happened within the cooldown. Otherwise it always
// returns a snapshot: failures and structural mismatches produce an empty
// one. Only a non-empty result advances LastSuccess.
//
// The scrape itself runs unlocked; callers that must not overlap runs
// guard Run themselves.
func (p *Pipeline) Run(ctx context.Context) *inventory.Snapshot {
	now := p.now()
	if !p.gate.IsPermitted(now) {
		p.logger.Debug("stock: outside scrape window", "now", now.UTC())
		return nil
	}
	if last := p.LastSuccess(); !last.IsZero() && now.Sub(last) < p.cooldown {
		p.logger.Debug("stock: cooldown active", "last_success", last, "cooldown", p.cooldown)
		return nil
	}

	ctx, span := tracer.Start(ctx, "stock.Run")
	defer span.End()

	raw, err := p.scraper.FetchStock(ctx, p.url)
	if err != nil {
		p.logger.Error("stock: scrape failed", "url", p.url, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape failed")
		return emptySnapshot()
	}
	if !raw.HasAll() {
		p.logger.Error("stock: scrape result missing categories", "url", p.url, "keys", len(raw))
		span.SetStatus(codes.Error, "missing categories")
		return emptySnapshot()
	}

	snap := inventory.Aggregate(raw)
	span.SetAttributes(
		attribute.Int("seeds", len(snap.Seeds)),
		attribute.Int("gear", len(snap.Gear)),
		attribute.Int("eggs", len(snap.Eggs)),
	)
	if snap.Total() == 0 {
		p.logger.Warn("stock: scrape returned no items", "url", p.url)
		return &snap
	}

	p.mu.Lock()
	p.lastSuccess = now
	p.mu.Unlock()
	p.logger.Info("stock: scrape complete",
		"seeds", len(snap.Seeds), "gear", len(snap.Gear), "eggs", len(snap.Eggs))
	return &snap
}

// LastSuccess returns the time of the last non-empty run, zero if none.
func (p *Pipeline) LastSuccess() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSuccess
}

// URL returns the scraped page.
func (p *Pipeline) URL() string { return p.url }

// Gate returns the configured window.
func (p *Pipeline) Gate() Gate { return p.gate }

func emptySnapshot() *inventory.Snapshot {
	s := inventory.Empty()
	return &s
}
