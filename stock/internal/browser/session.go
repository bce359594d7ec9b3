// Package browser owns the headless Chrome used for one scrape attempt:
// launch (or attach to a remote instance), open a stealth page, navigate,
// wait for elements, serialise the DOM, and tear everything down.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// DefaultUserAgent is a current desktop Chrome string.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36"

// Config configures a browser session.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty = launch a local Chrome. Remote sessions run in their own
	// incognito context so that closing them leaves the browser alive.
	RemoteURL string

	// Bin overrides the Chrome binary. Empty = launcher lookup/download.
	Bin string

	// NoSandbox disables the Chrome sandbox. Needed in most containers.
	NoSandbox bool

	// Stealth applies go-rod/stealth evasions to the page. Default: true
	// unless DisableStealth is set.
	DisableStealth bool

	UserAgent string
	Width     int
	Height    int

	// IdleWindow is how long the network must stay quiet to count as idle.
	// Default: 500ms.
	IdleWindow time.Duration

	// ResourceBlocking lists resource types to block (images, fonts, media, stylesheets).
	ResourceBlocking []string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Width <= 0 {
		c.Width = 1920
	}
	if c.Height <= 0 {
		c.Height = 1080
	}
	if c.IdleWindow <= 0 {
		c.IdleWindow = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session is one exclusively owned browser page.
type Session struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
	router  *rod.HijackRouter
}

// Launch starts Chrome, or attaches to cfg.RemoteURL, and opens a
// configured page. On error every partially acquired resource is released.
func Launch(ctx context.Context, cfg Config) (s *Session, err error) {
	cfg.defaults()
	s = &Session{cfg: cfg}
	defer func() {
		if err != nil {
			s.Close()
			s = nil
		}
	}()

	wsURL := cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Context(ctx).
			Headless(true).
			NoSandbox(cfg.NoSandbox).
			Set("disable-blink-features", "AutomationControlled").
			Set("disable-web-security").
			Set("disable-features", "IsolateOrigins,site-per-process").
			Set("window-size", strconv.Itoa(cfg.Width)+","+strconv.Itoa(cfg.Height))
		if cfg.NoSandbox {
			l = l.Set("disable-setuid-sandbox")
		}
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		s.lnch = l
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		cfg.Logger.Debug("browser: launched local chrome", "url", wsURL)
	} else {
		cfg.Logger.Debug("browser: connecting to remote", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if cfg.RemoteURL != "" {
		inc, err := b.Incognito()
		if err != nil {
			return nil, fmt.Errorf("browser: incognito: %w", err)
		}
		b = inc
	}
	s.browser = b

	if cfg.DisableStealth {
		s.page, err = b.Page(proto.TargetCreateTarget{})
	} else {
		s.page, err = stealth.Page(b)
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.Width,
		Height:            cfg.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("browser: viewport: %w", err)
	}
	if err := s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
		return nil, fmt.Errorf("browser: user agent: %w", err)
	}
	if len(cfg.ResourceBlocking) > 0 {
		s.router = applyResourceBlocking(s.page, cfg.ResourceBlocking)
	}
	return s, nil
}

// Navigate loads url and waits for the network to go idle. Both are bound
// by ctx; running out of time is an error.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	wait := p.WaitRequestIdle(s.cfg.IdleWindow, nil, nil, nil)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("browser: network idle %s: %w", url, err)
	}
	return nil
}

// WaitElements blocks until every selector matches at least one element.
func (s *Session) WaitElements(ctx context.Context, selectors ...string) error {
	p := s.page.Context(ctx)
	for _, sel := range selectors {
		if _, err := p.Element(sel); err != nil {
			return fmt.Errorf("browser: wait %q: %w", sel, err)
		}
	}
	return nil
}

// HTML serialises the current document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: serialise dom: %w", err)
	}
	return res.Value.Str(), nil
}

// Close releases the page, the browser (or incognito context) and the
// local Chrome process. Safe to call more than once.
func (s *Session) Close() error {
	var errs []error
	if s.router != nil {
		if err := s.router.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("browser: stop hijack: %w", err))
		}
		s.router = nil
	}
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("browser: close page: %w", err))
		}
		s.page = nil
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("browser: close: %w", err))
		}
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Kill()
		s.lnch.Cleanup()
		s.lnch = nil
	}
	return errors.Join(errs...)
}
