package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/gagstock/notify"
	"github.com/hazyhaar/gagstock/stock/inventory"
	"github.com/hazyhaar/gagstock/weather"
)

func TestRouter_FanOutContinuesOnError(t *testing.T) {
	// WHAT: A failing sink does not stop delivery to the others.
	// WHY: A dead webhook must not silence the socket clients.
	boom := errors.New("boom")
	var delivered int
	failing := &Callback{OnStock: func(context.Context, inventory.Snapshot) error { return boom }}
	ok := &Callback{OnStock: func(context.Context, inventory.Snapshot) error { delivered++; return nil }}

	r := NewRouter(nil, failing, ok)
	err := r.SendStock(context.Background(), inventory.Empty())
	if !errors.Is(err, boom) {
		t.Fatalf("error: got %v, want %v", err, boom)
	}
	if delivered != 1 {
		t.Fatalf("delivered: got %d, want 1", delivered)
	}
}

func TestRouter_Add(t *testing.T) {
	r := NewRouter(nil)
	var got string
	r.Add(&Callback{OnWeather: func(_ context.Context, w weather.Snapshot) error { got = w.CurrentWeather; return nil }})
	if r.Len() != 1 {
		t.Fatalf("len: got %d", r.Len())
	}
	if err := r.SendWeather(context.Background(), weather.Snapshot{CurrentWeather: "Rain"}); err != nil {
		t.Fatal(err)
	}
	if got != "Rain" {
		t.Fatalf("weather: got %q", got)
	}
}

func TestStdout_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	s.SendStock(context.Background(), inventory.Empty())
	s.SendWeather(context.Background(), weather.Snapshot{CurrentWeather: "Rain"})
	s.SendNotification(context.Background(), notify.Notification{Item: "Carrot"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines: got %d: %q", len(lines), buf.String())
	}
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != EventStock || string(env.Data) != `{"seeds":[],"gear":[],"eggs":[]}` {
		t.Fatalf("line 0: %s", lines[0])
	}
}

func TestWebhook_RetriesServerErrors(t *testing.T) {
	// WHAT: 5xx responses are retried until success.
	var calls atomic.Int32
	var lastBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastBody, _ = io.ReadAll(r.Body)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond, 5*time.Millisecond))
	n := notify.Notification{ClientID: "c1", Item: "Carrot", Message: "Carrot is now in stock!"}
	if err := wh.SendNotification(context.Background(), n); err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls: got %d, want 3", calls.Load())
	}
	if !strings.Contains(string(lastBody), `"type":"itemNotification"`) || !strings.Contains(string(lastBody), `"client":"c1"`) {
		t.Fatalf("body: %s", lastBody)
	}
}

func TestWebhook_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond, 5*time.Millisecond))
	err := wh.SendStock(context.Background(), inventory.Empty())
	var sf *ErrSendFailed
	if !errors.As(err, &sf) || sf.Event != EventStock {
		t.Fatalf("error: got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls: got %d, want 1", calls.Load())
	}
}

func TestWebhook_RateLimited(t *testing.T) {
	// WHAT: Requests beyond the configured rate wait, and give up when the
	// context cannot cover the wait.
	// WHY: A burst of notifications must not flood the receiver.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookRate(1, 1))
	if err := wh.SendStock(context.Background(), inventory.Empty()); err != nil {
		t.Fatalf("first send: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := wh.SendStock(ctx, inventory.Empty()); err == nil {
		t.Fatal("second send should exceed the rate")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls: got %d, want 1", calls.Load())
	}
}
