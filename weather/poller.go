package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Fetcher returns the raw weather payload.
type Fetcher interface {
	Fetch(ctx context.Context) (map[string]any, error)
}

// ChangeFunc receives every new weather state.
type ChangeFunc func(ctx context.Context, snap Snapshot)

// spacingSlack absorbs ticker jitter between two consecutive ticks.
const spacingSlack = 250 * time.Millisecond

// PollerConfig configures a Poller.
type PollerConfig struct {
	// Interval between polls. Default: 10s.
	Interval time.Duration
	// MinSpacing is the minimum time between two fetch attempts. Default: Interval.
	MinSpacing time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

func (c *PollerConfig) defaults() {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.MinSpacing <= 0 {
		c.MinSpacing = c.Interval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Poller fetches weather periodically and calls OnChange when the payload
// differs from the previous one.
type Poller struct {
	cfg      PollerConfig
	fetcher  Fetcher
	onChange ChangeFunc

	inProgress atomic.Bool

	mu          sync.RWMutex
	lastAttempt time.Time
	lastRaw     []byte
	current     Snapshot
	updatedAt   time.Time
}

// NewPoller creates a Poller. onChange may be nil.
func NewPoller(f Fetcher, onChange ChangeFunc, cfg PollerConfig) *Poller {
	cfg.defaults()
	return &Poller{cfg: cfg, fetcher: f, onChange: onChange}
}

// Run polls once immediately and then every Interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	p.cfg.Logger.Info("weather: poller started", "interval", p.cfg.Interval)
	p.Poll(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.cfg.Logger.Info("weather: poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs one guarded fetch. It reports whether the state changed.
// Overlapping or too-close calls return false without fetching.
func (p *Poller) Poll(ctx context.Context) bool {
	if !p.inProgress.CompareAndSwap(false, true) {
		p.cfg.Logger.Debug("weather: poll already in progress")
		return false
	}
	defer p.inProgress.Store(false)

	now := p.cfg.Now()
	p.mu.Lock()
	if !p.lastAttempt.IsZero() && now.Sub(p.lastAttempt) < p.cfg.MinSpacing-spacingSlack {
		p.mu.Unlock()
		p.cfg.Logger.Debug("weather: poll too soon", "since", now.Sub(p.lastAttempt))
		return false
	}
	p.lastAttempt = now
	p.mu.Unlock()

	payload, err := p.fetcher.Fetch(ctx)
	if err != nil {
		p.cfg.Logger.Warn("weather: fetch failed", "error", err)
		return false
	}
	// Marshalling a map sorts its keys, so equal payloads give equal bytes.
	raw, err := json.Marshal(payload)
	if err != nil {
		p.cfg.Logger.Warn("weather: encode payload", "error", err)
		return false
	}

	p.mu.Lock()
	if p.lastRaw != nil && bytes.Equal(raw, p.lastRaw) {
		p.mu.Unlock()
		return false
	}
	snap := FromPayload(payload, now)
	p.lastRaw = raw
	p.current = snap
	p.updatedAt = now
	p.mu.Unlock()

	p.cfg.Logger.Info("weather: changed", "weather", snap.CurrentWeather)
	if p.onChange != nil {
		p.onChange(ctx, snap)
	}
	return true
}

// Current returns the last known weather.
func (p *Poller) Current() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// UpdatedAt returns when the weather last changed, zero if never.
func (p *Poller) UpdatedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.updatedAt
}
