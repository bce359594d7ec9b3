package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/hazyhaar/gagstock/notify"
	"github.com/hazyhaar/gagstock/stock/inventory"
	"github.com/hazyhaar/gagstock/weather"
)

// Webhook POSTs JSON envelopes to a URL with retry and exponential backoff.
type Webhook struct {
	url     string
	client  *resty.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.client.SetRetryCount(n) }
}

// WithWebhookBackoff sets the first and the maximum retry wait.
// Default: 1s and 8s.
func WithWebhookBackoff(first, max time.Duration) WebhookOption {
	return func(w *Webhook) {
		w.client.SetRetryWaitTime(first).SetRetryMaxWaitTime(max)
	}
}

// WithWebhookRate caps outgoing requests, retries included. Default: 5/s
// with a burst of 10. A non-positive perSecond removes the cap.
func WithWebhookRate(perSecond float64, burst int) WebhookOption {
	return func(w *Webhook) {
		if perSecond <= 0 {
			w.limiter.SetLimit(rate.Inf)
			return
		}
		w.limiter.SetLimit(rate.Limit(perSecond))
		w.limiter.SetBurst(max(burst, 1))
	}
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a Webhook sink targeting the given URL.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{url: url, limiter: rate.NewLimiter(5, 10), logger: slog.Default()}
	w.client = resty.New().
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(3).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(8 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		}).
		OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return w.limiter.Wait(req.Context())
		})
	for _, o := range opts {
		o(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

type notificationPayload struct {
	Client  string `json:"client"`
	Item    string `json:"item"`
	Message string `json:"message"`
}

func (w *Webhook) SendStock(ctx context.Context, snap inventory.Snapshot) error {
	return w.post(ctx, EventStock, snap)
}

func (w *Webhook) SendWeather(ctx context.Context, ws weather.Snapshot) error {
	return w.post(ctx, EventWeather, ws)
}

func (w *Webhook) SendNotification(ctx context.Context, n notify.Notification) error {
	return w.post(ctx, EventNotification, notificationPayload{Client: n.ClientID, Item: n.Item, Message: n.Message})
}

func (w *Webhook) Close() error { return nil }

func (w *Webhook) post(ctx context.Context, typ string, data any) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(envelope{Type: typ, Data: data}).
		Post(w.url)
	if err != nil {
		return &ErrSendFailed{Sink: "webhook", Event: typ, Cause: err}
	}
	if resp.IsError() {
		w.logger.Warn("webhook: bad status", "url", w.url, "status", resp.StatusCode(), "attempts", resp.Request.Attempt)
		return &ErrSendFailed{Sink: "webhook", Event: typ, Cause: fmt.Errorf("status %d", resp.StatusCode())}
	}
	return nil
}
