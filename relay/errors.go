package relay

import "fmt"

// ErrSendFailed is returned when a backend could not deliver an event.
type ErrSendFailed struct {
	Sink  string
	Event string
	Cause error
}

func (e *ErrSendFailed) Error() string {
	return fmt.Sprintf("relay: %s: send %s failed: %v", e.Sink, e.Event, e.Cause)
}

func (e *ErrSendFailed) Unwrap() error { return e.Cause }
