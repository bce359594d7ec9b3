package relay

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/gagstock/notify"
	"github.com/hazyhaar/gagstock/stock/inventory"
	"github.com/hazyhaar/gagstock/weather"
)

// Stdout writes JSON lines to an io.Writer (default os.Stdout).
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w)}
}

func (s *Stdout) write(typ string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(envelope{Type: typ, Data: data}); err != nil {
		return &ErrSendFailed{Sink: "stdout", Event: typ, Cause: err}
	}
	return nil
}

func (s *Stdout) SendStock(_ context.Context, snap inventory.Snapshot) error {
	return s.write(EventStock, snap)
}

func (s *Stdout) SendWeather(_ context.Context, w weather.Snapshot) error {
	return s.write(EventWeather, w)
}

// SendNotification is a no-op: notifications address a single socket
// client and carry no value on a shared stream.
func (s *Stdout) SendNotification(context.Context, notify.Notification) error { return nil }

func (s *Stdout) Close() error { return nil }
