package relay

import (
	"context"

	"github.com/hazyhaar/gagstock/notify"
	"github.com/hazyhaar/gagstock/stock/inventory"
	"github.com/hazyhaar/gagstock/weather"
)

// Callback delivers events via Go function calls. Any handler may be nil.
type Callback struct {
	OnStock        func(ctx context.Context, snap inventory.Snapshot) error
	OnWeather      func(ctx context.Context, w weather.Snapshot) error
	OnNotification func(ctx context.Context, n notify.Notification) error
}

func (c *Callback) SendStock(ctx context.Context, snap inventory.Snapshot) error {
	if c.OnStock != nil {
		return c.OnStock(ctx, snap)
	}
	return nil
}

func (c *Callback) SendWeather(ctx context.Context, w weather.Snapshot) error {
	if c.OnWeather != nil {
		return c.OnWeather(ctx, w)
	}
	return nil
}

func (c *Callback) SendNotification(ctx context.Context, n notify.Notification) error {
	if c.OnNotification != nil {
		return c.OnNotification(ctx, n)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
