package tracker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/gagstock/notify"
	"github.com/hazyhaar/gagstock/relay"
	"github.com/hazyhaar/gagstock/stock"
	"github.com/hazyhaar/gagstock/stock/inventory"
	"github.com/hazyhaar/gagstock/weather"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeWeather struct{ payload map[string]any }

func (f fakeWeather) Fetch(context.Context) (map[string]any, error) { return f.payload, nil }

type recorder struct {
	mu            sync.Mutex
	stocks        []inventory.Snapshot
	weathers      []weather.Snapshot
	notifications []notify.Notification
}

func (r *recorder) sink() *relay.Callback {
	return &relay.Callback{
		OnStock: func(_ context.Context, s inventory.Snapshot) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.stocks = append(r.stocks, s)
			return nil
		},
		OnWeather: func(_ context.Context, w weather.Snapshot) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.weathers = append(r.weathers, w)
			return nil
		},
		OnNotification: func(_ context.Context, n notify.Notification) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.notifications = append(r.notifications, n)
			return nil
		},
	}
}

func carrotRaw() inventory.Raw {
	return inventory.Raw{
		inventory.Seeds: {{Name: "Seeds Carrot", Quantity: 4}},
		inventory.Gear:  {{Name: "Trowel", Quantity: 1}},
		inventory.Eggs:  {},
	}
}

// windowOpen is a UTC instant inside the default scrape window.
var windowOpen = time.Date(2026, 1, 1, 12, 5, 32, 0, time.UTC)

func newTestTracker(t *testing.T, scraper stock.Scraper, clock *fakeClock, rec *recorder) *Tracker {
	t.Helper()
	tr, err := New(DefaultConfig(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithScraper(scraper),
		WithWeatherFetcher(fakeWeather{payload: map[string]any{"currentWeather": "Rain", "icon": "R"}}),
		WithClock(clock),
		WithSinks(rec.sink()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestUpdateStock_BroadcastsAndNotifies(t *testing.T) {
	// WHAT: A successful run stores the snapshot, fans it out, and then
	// sends one notification per matching subscription.
	// WHY: Clients must see the new stock before being told an item is in it.
	rec := &recorder{}
	clock := &fakeClock{t: windowOpen}
	tr := newTestTracker(t, stock.ScraperFunc(func(context.Context, string) (inventory.Raw, error) {
		return carrotRaw(), nil
	}), clock, rec)

	tr.Registry().Setup("cli_a", []string{"carrot"}, true)
	tr.Registry().Setup("cli_b", []string{"mango"}, true)
	tr.Registry().Setup("cli_c", []string{"carrot"}, false)

	if !tr.UpdateStock(context.Background()) {
		t.Fatal("UpdateStock: expected a snapshot")
	}

	want := []inventory.Record{{Name: "Carrot", Quantity: 4}}
	if diff := cmp.Diff(want, tr.Stock().Seeds); diff != "" {
		t.Errorf("seeds (-want +got):\n%s", diff)
	}
	if len(rec.stocks) != 1 {
		t.Fatalf("stock events: got %d, want 1", len(rec.stocks))
	}
	wantN := []notify.Notification{{ClientID: "cli_a", Item: "carrot", Message: "carrot is now in stock!"}}
	if diff := cmp.Diff(wantN, rec.notifications); diff != "" {
		t.Errorf("notifications (-want +got):\n%s", diff)
	}
}

func TestUpdateStock_GateClosed(t *testing.T) {
	rec := &recorder{}
	clock := &fakeClock{t: windowOpen.Add(-3 * time.Second)}
	calls := 0
	tr := newTestTracker(t, stock.ScraperFunc(func(context.Context, string) (inventory.Raw, error) {
		calls++
		return carrotRaw(), nil
	}), clock, rec)

	if tr.UpdateStock(context.Background()) {
		t.Fatal("expected no snapshot outside the window")
	}
	if calls != 0 || len(rec.stocks) != 0 {
		t.Fatalf("calls=%d events=%d, want 0 and 0", calls, len(rec.stocks))
	}
	if tr.Stock().Total() != 0 {
		t.Fatal("stock should still be empty")
	}
}

func TestUpdateStock_SkipsWhileRunning(t *testing.T) {
	// WHAT: A second trigger during an in-flight run returns immediately.
	// WHY: Overlapping runs would launch two browsers and double-broadcast.
	rec := &recorder{}
	clock := &fakeClock{t: windowOpen}
	entered := make(chan struct{})
	release := make(chan struct{})
	tr := newTestTracker(t, stock.ScraperFunc(func(context.Context, string) (inventory.Raw, error) {
		close(entered)
		<-release
		return carrotRaw(), nil
	}), clock, rec)

	done := make(chan bool)
	go func() { done <- tr.UpdateStock(context.Background()) }()
	<-entered

	if tr.UpdateStock(context.Background()) {
		t.Fatal("overlapping call should be skipped")
	}
	close(release)
	if !<-done {
		t.Fatal("first call should produce a snapshot")
	}
}

func TestStatus_DuringScrape(t *testing.T) {
	// WHAT: Status returns while a stock scrape is in flight.
	// WHY: /api/status and the MCP status tool must not hang for the scrape.
	rec := &recorder{}
	clock := &fakeClock{t: windowOpen}
	entered := make(chan struct{})
	release := make(chan struct{})
	tr := newTestTracker(t, stock.ScraperFunc(func(context.Context, string) (inventory.Raw, error) {
		close(entered)
		<-release
		return carrotRaw(), nil
	}), clock, rec)

	done := make(chan bool)
	go func() { done <- tr.UpdateStock(context.Background()) }()
	<-entered

	got := make(chan Status)
	go func() { got <- tr.Status() }()
	select {
	case s := <-got:
		if s.LastSuccessfulRun != nil {
			t.Errorf("lastSuccessfulRun before completion: %v", *s.LastSuccessfulRun)
		}
	case <-time.After(time.Second):
		t.Fatal("Status blocked while a scrape was in flight")
	}

	close(release)
	if !<-done {
		t.Fatal("scrape should produce a snapshot")
	}
}

func TestUpdateStock_FailureBroadcastsEmpty(t *testing.T) {
	// WHAT: An exhausted scrape still produces an empty snapshot that replaces
	// the current one and is broadcast.
	rec := &recorder{}
	clock := &fakeClock{t: windowOpen}
	fail := false
	tr := newTestTracker(t, stock.ScraperFunc(func(context.Context, string) (inventory.Raw, error) {
		if fail {
			return nil, io.ErrUnexpectedEOF
		}
		return carrotRaw(), nil
	}), clock, rec)

	tr.UpdateStock(context.Background())
	fail = true
	clock.Advance(5 * time.Minute)
	if !tr.UpdateStock(context.Background()) {
		t.Fatal("failure should still produce a snapshot")
	}
	if tr.Stock().Total() != 0 {
		t.Fatalf("stock: got %d records, want 0", tr.Stock().Total())
	}
	if len(rec.stocks) != 2 {
		t.Fatalf("stock events: got %d, want 2", len(rec.stocks))
	}
}

func TestStatus(t *testing.T) {
	rec := &recorder{}
	clock := &fakeClock{t: windowOpen}
	tr := newTestTracker(t, stock.ScraperFunc(func(context.Context, string) (inventory.Raw, error) {
		return carrotRaw(), nil
	}), clock, rec)

	s := tr.Status()
	if s.Status != "online" || s.LastUpdate.Stock != "none" || s.LastUpdate.Weather != "none" {
		t.Fatalf("initial status: %+v", s)
	}
	if s.LastSuccessfulRun != nil {
		t.Fatal("lastSuccessfulRun should be nil before any run")
	}

	tr.UpdateStock(context.Background())
	if !tr.PollWeather(context.Background()) {
		t.Fatal("PollWeather: expected a change")
	}
	clock.Advance(10 * time.Second)

	s = tr.Status()
	if s.LastUpdate.Stock != "recent" || s.LastUpdate.Weather != "recent" {
		t.Fatalf("lastUpdate: %+v", s.LastUpdate)
	}
	if s.LastSuccessfulRun == nil || !s.LastSuccessfulRun.Equal(windowOpen) {
		t.Fatalf("lastSuccessfulRun: %v", s.LastSuccessfulRun)
	}
	if s.Uptime != 10 {
		t.Errorf("uptime: got %v, want 10", s.Uptime)
	}
	if want := time.Date(2026, 1, 1, 12, 10, 30, 0, time.UTC); !s.NextRun.Equal(want) {
		t.Errorf("nextRun: got %v, want %v", s.NextRun, want)
	}
	if len(rec.weathers) != 1 || rec.weathers[0].CurrentWeather != "Rain" {
		t.Errorf("weather events: %+v", rec.weathers)
	}
}

func TestNew_RejectsBadSink(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sinks = []SinkConfig{{Type: "carrier-pigeon"}}
	if _, err := New(cfg, WithScraper(stock.ScraperFunc(nil))); err == nil {
		t.Fatal("expected an error for an unknown sink type")
	}
}
