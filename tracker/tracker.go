// Package tracker wires the stock pipeline, the weather poller, the
// subscription registry and the output sinks into one service, and
// exposes it over HTTP, WebSocket and MCP.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/gagstock/live"
	"github.com/hazyhaar/gagstock/notify"
	"github.com/hazyhaar/gagstock/relay"
	"github.com/hazyhaar/gagstock/stock"
	"github.com/hazyhaar/gagstock/stock/inventory"
	"github.com/hazyhaar/gagstock/weather"
)

// Option configures a Tracker.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	scraper stock.Scraper
	fetcher weather.Fetcher
	clock   Clock
	sinks   []relay.Sink
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithScraper replaces the headless-browser scraper.
func WithScraper(s stock.Scraper) Option {
	return func(o *options) { o.scraper = s }
}

// WithWeatherFetcher replaces the HTTP weather client.
func WithWeatherFetcher(f weather.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithSinks adds output sinks next to the socket hub and configured sinks.
func WithSinks(s ...relay.Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, s...) }
}

// Tracker is the running service.
type Tracker struct {
	cfg      *Config
	logger   *slog.Logger
	clock    Clock
	started  time.Time
	pipeline *stock.Pipeline
	poller   *weather.Poller
	registry *notify.Registry
	hub      *live.Hub
	sinks    *relay.Router
	trigger  *Trigger

	updating atomic.Bool

	mu      sync.RWMutex
	stock   inventory.Snapshot
	stockAt time.Time
}

// New builds a Tracker from cfg. Nothing runs until Run is called.
func New(cfg *Config, opts ...Option) (*Tracker, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = realClock{}
	}
	if o.scraper == nil {
		o.scraper = stock.NewBrowserScraper(cfg.BrowserSpec(), cfg.ScrapeSpec(), o.logger)
	}
	if o.fetcher == nil {
		wopts := []weather.ClientOption{
			weather.WithTimeout(cfg.Weather.Timeout),
			weather.WithClientLogger(o.logger),
		}
		if ua := cfg.Weather.UserAgent; ua != "" {
			wopts = append(wopts, weather.WithUserAgent(ua))
		}
		o.fetcher = weather.NewClient(cfg.Weather.URL, wopts...)
	}

	t := &Tracker{
		cfg:      cfg,
		logger:   o.logger,
		clock:    o.clock,
		started:  o.clock.Now(),
		registry: notify.NewRegistry(),
		stock:    inventory.Empty(),
	}

	t.pipeline = stock.NewPipeline(o.scraper,
		stock.WithURL(cfg.Stock.URL),
		stock.WithGate(cfg.GateSpec()),
		stock.WithCooldown(cfg.Stock.Cooldown),
		stock.WithClock(o.clock.Now),
		stock.WithLogger(o.logger),
	)

	t.hub = live.New(t.registry, t, live.WithLogger(o.logger))
	sinks, err := buildSinks(cfg.Sinks, o.logger)
	if err != nil {
		return nil, err
	}
	t.sinks = relay.NewRouter(o.logger, append(append([]relay.Sink{t.hub}, sinks...), o.sinks...)...)

	t.poller = weather.NewPoller(o.fetcher, t.onWeather, weather.PollerConfig{
		Interval:   cfg.Weather.Interval,
		MinSpacing: cfg.Weather.MinSpacing,
		Now:        o.clock.Now,
		Logger:     o.logger,
	})
	spec, err := cfg.ScheduleSpec()
	if err != nil {
		return nil, err
	}
	t.trigger, err = NewTrigger(spec, func(ctx context.Context) { t.UpdateStock(ctx) }, o.clock, o.logger)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func buildSinks(cfgs []SinkConfig, logger *slog.Logger) ([]relay.Sink, error) {
	var out []relay.Sink
	for i, sc := range cfgs {
		switch sc.Type {
		case "stdout":
			out = append(out, relay.NewStdout(nil))
		case "webhook":
			opts := []relay.WebhookOption{relay.WithWebhookLogger(logger)}
			if sc.Retries > 0 {
				opts = append(opts, relay.WithWebhookRetries(sc.Retries))
			}
			if sc.Rate != 0 {
				opts = append(opts, relay.WithWebhookRate(sc.Rate, int(2*sc.Rate)))
			}
			out = append(out, relay.NewWebhook(sc.URL, opts...))
		default:
			return nil, fmt.Errorf("tracker: sinks[%d]: unknown type %q", i, sc.Type)
		}
	}
	return out, nil
}

// Run starts the weather poller and the stock schedule and blocks until
// ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		t.poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		t.trigger.Run(ctx)
	}()
	wg.Wait()
	return ctx.Err()
}

// UpdateStock runs the pipeline once unless a run is already in flight.
// A produced snapshot replaces the current one, is broadcast, and is
// matched against subscriptions. It reports whether a snapshot was
// produced.
func (t *Tracker) UpdateStock(ctx context.Context) bool {
	if !t.updating.CompareAndSwap(false, true) {
		t.logger.Info("tracker: stock update already in progress, skipping")
		return false
	}
	defer t.updating.Store(false)

	start := t.clock.Now()
	snap := t.pipeline.Run(ctx)
	if snap == nil {
		t.logger.Info("tracker: no stock data this cycle")
		return false
	}

	t.mu.Lock()
	t.stock = *snap
	t.stockAt = t.clock.Now()
	t.mu.Unlock()

	t.sinks.SendStock(ctx, *snap)
	t.logger.Info("tracker: stock updated",
		"took", t.clock.Now().Sub(start),
		"seeds", len(snap.Seeds), "gear", len(snap.Gear), "eggs", len(snap.Eggs))

	t.notify(ctx, *snap)
	return true
}

func (t *Tracker) notify(ctx context.Context, snap inventory.Snapshot) {
	for _, n := range t.registry.Match(snap) {
		t.sinks.SendNotification(ctx, n)
	}
}

func (t *Tracker) onWeather(ctx context.Context, w weather.Snapshot) {
	t.sinks.SendWeather(ctx, w)
}

// Stock returns the last produced snapshot.
func (t *Tracker) Stock() inventory.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stock
}

// Weather returns the last known weather.
func (t *Tracker) Weather() weather.Snapshot {
	return t.poller.Current()
}

// PollWeather forces one weather poll, subject to the poller's guards.
func (t *Tracker) PollWeather(ctx context.Context) bool {
	return t.poller.Poll(ctx)
}

// Registry exposes the subscription registry.
func (t *Tracker) Registry() *notify.Registry { return t.registry }

// Hub exposes the socket hub.
func (t *Tracker) Hub() *live.Hub { return t.hub }

// Status is the health summary served by /api/status.
type Status struct {
	Status            string     `json:"status"`
	Timestamp         int64      `json:"timestamp"`
	Uptime            float64    `json:"uptime"`
	Connections       int        `json:"connections"`
	LastUpdate        LastUpdate `json:"lastUpdate"`
	LastSuccessfulRun *time.Time `json:"lastSuccessfulRun"`
	NextRun           time.Time  `json:"nextRun"`
}

// LastUpdate says whether data has been received.
type LastUpdate struct {
	Stock   string `json:"stock"`
	Weather string `json:"weather"`
}

// Status reports the service state.
func (t *Tracker) Status() Status {
	now := t.clock.Now()
	s := Status{
		Status:      "online",
		Timestamp:   now.UnixMilli(),
		Uptime:      now.Sub(t.started).Seconds(),
		Connections: t.hub.Count(),
		LastUpdate:  LastUpdate{Stock: "none", Weather: "none"},
		NextRun:     t.trigger.Next(),
	}
	if t.Stock().Total() > 0 {
		s.LastUpdate.Stock = "recent"
	}
	if t.Weather().Known() {
		s.LastUpdate.Weather = "recent"
	}
	if last := t.pipeline.LastSuccess(); !last.IsZero() {
		last = last.UTC()
		s.LastSuccessfulRun = &last
	}
	return s
}

// Close disconnects clients and closes every sink.
func (t *Tracker) Close() error {
	return t.sinks.Close()
}
