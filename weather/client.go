package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultUserAgent matches the browser used for the stock page.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("weather: %s: status %d", e.URL, e.Status)
}

// Client fetches the weather payload.
type Client struct {
	url    string
	http   *resty.Client
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the request timeout. Default: 5s.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.http.SetHeader("User-Agent", ua) }
}

// WithClientLogger sets a custom logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client for url (DefaultURL when empty).
func NewClient(url string, opts ...ClientOption) *Client {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		url: url,
		http: resty.New().
			SetTimeout(5*time.Second).
			SetHeader("User-Agent", DefaultUserAgent).
			SetHeader("Accept", "application/json"),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Fetch returns the decoded payload object.
func (c *Client) Fetch(ctx context.Context) (map[string]any, error) {
	resp, err := c.http.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("weather: get %s: %w", c.url, err)
	}
	if resp.IsError() {
		return nil, &StatusError{URL: c.url, Status: resp.StatusCode()}
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("weather: decode: %w", err)
	}
	if payload == nil {
		return nil, fmt.Errorf("weather: decode: empty payload")
	}
	c.logger.Debug("weather: fetched", "url", c.url, "bytes", len(resp.Body()))
	return payload, nil
}

// URL returns the polled endpoint.
func (c *Client) URL() string { return c.url }
