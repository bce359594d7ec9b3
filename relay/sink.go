// Package relay delivers stock, weather and notification events to output
// backends: in-process callbacks, JSON lines on stdout, HTTP webhooks and
// the live socket hub.
package relay

import (
	"context"

	"github.com/hazyhaar/gagstock/notify"
	"github.com/hazyhaar/gagstock/stock/inventory"
	"github.com/hazyhaar/gagstock/weather"
)

// Event names shared by every backend.
const (
	EventStock        = "stockUpdate"
	EventWeather      = "weatherUpdate"
	EventNotification = "itemNotification"
)

// Sink is the output interface.
type Sink interface {
	SendStock(ctx context.Context, snap inventory.Snapshot) error
	SendWeather(ctx context.Context, w weather.Snapshot) error
	SendNotification(ctx context.Context, n notify.Notification) error
	Close() error
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
