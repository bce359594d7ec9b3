package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hazyhaar/gagstock/notify"
	"github.com/hazyhaar/gagstock/stock/inventory"
	"github.com/hazyhaar/gagstock/weather"
)

// Router fans out events to all configured sinks. One sink error does not
// block the others: errors are logged and the first encountered is
// returned.
type Router struct {
	mu     sync.RWMutex
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Add registers another sink.
func (r *Router) Add(s Sink) {
	r.mu.Lock()
	r.sinks = append(r.sinks, s)
	r.mu.Unlock()
}

// Len returns the number of sinks.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

func (r *Router) each(event string, fn func(Sink) error) error {
	r.mu.RLock()
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.RUnlock()

	var firstErr error
	for _, s := range sinks {
		if err := fn(s); err != nil {
			r.logger.Warn("relay: send failed", "event", event, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) SendStock(ctx context.Context, snap inventory.Snapshot) error {
	return r.each(EventStock, func(s Sink) error { return s.SendStock(ctx, snap) })
}

func (r *Router) SendWeather(ctx context.Context, w weather.Snapshot) error {
	return r.each(EventWeather, func(s Sink) error { return s.SendWeather(ctx, w) })
}

func (r *Router) SendNotification(ctx context.Context, n notify.Notification) error {
	return r.each(EventNotification, func(s Sink) error { return s.SendNotification(ctx, n) })
}

func (r *Router) Close() error {
	return r.each("close", func(s Sink) error { return s.Close() })
}
