package tracker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func mustSchedule(t *testing.T, every, offset time.Duration) func(time.Time) time.Time {
	t.Helper()
	spec, err := ScheduleSpec(every, offset)
	if err != nil {
		t.Fatalf("ScheduleSpec(%s, %s): %v", every, offset, err)
	}
	s, err := ParseSchedule(spec)
	if err != nil {
		t.Fatalf("ParseSchedule(%q): %v", spec, err)
	}
	return s.Next
}

func TestSchedule_Next(t *testing.T) {
	at := func(h, m, s int) time.Time { return time.Date(2026, 3, 1, h, m, s, 0, time.UTC) }
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{at(12, 0, 0), at(12, 0, 30)},
		{at(12, 0, 29), at(12, 0, 30)},
		{at(12, 0, 30), at(12, 5, 30)},
		{at(12, 3, 10), at(12, 5, 30)},
		{at(23, 59, 45), time.Date(2026, 3, 2, 0, 0, 30, 0, time.UTC)},
	}
	next := mustSchedule(t, 5*time.Minute, 30*time.Second)
	for _, tc := range cases {
		if got := next(tc.now); !got.Equal(tc.want) {
			t.Errorf("Next(%s): got %s, want %s", tc.now.Format(time.TimeOnly), got, tc.want)
		}
	}
}

func TestSchedule_NonUTCInput(t *testing.T) {
	// WHAT: Boundaries are computed on the UTC clock whatever the input zone.
	loc := time.FixedZone("UTC+5:30", 5*3600+1800)
	now := time.Date(2026, 3, 1, 17, 33, 10, 0, loc) // 12:03:10 UTC
	want := time.Date(2026, 3, 1, 12, 5, 30, 0, time.UTC)
	if got := mustSchedule(t, 5*time.Minute, 30*time.Second)(now); !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestScheduleSpec(t *testing.T) {
	cases := []struct {
		every, offset time.Duration
		want          string
	}{
		{5 * time.Minute, 30 * time.Second, "CRON_TZ=UTC 30 0/5 * * * *"},
		{10 * time.Minute, 90 * time.Second, "CRON_TZ=UTC 30 1/10 * * * *"},
		{5 * time.Minute, 6 * time.Minute, "CRON_TZ=UTC 0 1/5 * * * *"},
		{time.Hour, 0, "CRON_TZ=UTC 0 0/60 * * * *"},
		{2 * time.Hour, 75 * time.Minute, "CRON_TZ=UTC 0 15 1/2 * * *"},
	}
	for _, tc := range cases {
		got, err := ScheduleSpec(tc.every, tc.offset)
		if err != nil {
			t.Errorf("ScheduleSpec(%s, %s): %v", tc.every, tc.offset, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ScheduleSpec(%s, %s): got %q, want %q", tc.every, tc.offset, got, tc.want)
		}
		if _, err := ParseSchedule(got); err != nil {
			t.Errorf("spec %q does not parse: %v", got, err)
		}
	}
}

func TestScheduleSpec_Invalid(t *testing.T) {
	cases := map[string][2]time.Duration{
		"partial minute":  {90 * time.Second, 0},
		"does not divide": {7 * time.Minute, 0},
		"odd hours":       {5 * time.Hour, 0},
		"sub-second":      {5 * time.Minute, 1500 * time.Millisecond},
		"negative offset": {5 * time.Minute, -time.Second},
		"non-positive":    {0, 0},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			if spec, err := ScheduleSpec(c[0], c[1]); err == nil {
				t.Fatalf("expected an error, got %q", spec)
			}
		})
	}
}

func TestTrigger_Next(t *testing.T) {
	// WHAT: Next reads the injected clock, not wall time.
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 3, 0, 0, time.UTC)}
	spec, _ := ScheduleSpec(5*time.Minute, 30*time.Second)
	trig, err := NewTrigger(spec, func(context.Context) {}, clock, nil)
	if err != nil {
		t.Fatalf("NewTrigger: %v", err)
	}
	if want := time.Date(2026, 3, 1, 12, 5, 30, 0, time.UTC); !trig.Next().Equal(want) {
		t.Errorf("Next: got %s, want %s", trig.Next(), want)
	}
}

func TestTrigger_BadSpec(t *testing.T) {
	if _, err := NewTrigger("every five minutes", func(context.Context) {}, nil, nil); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestTrigger_Fires(t *testing.T) {
	// WHAT: Run fires on the cron schedule until ctx is cancelled.
	// WHY: A once-per-second spec keeps the test short on the real clock.
	var mu sync.Mutex
	fired := 0
	done := make(chan struct{})
	trig, err := NewTrigger("CRON_TZ=UTC * * * * * *", func(context.Context) {
		mu.Lock()
		defer mu.Unlock()
		fired++
		if fired == 2 {
			close(done)
		}
	}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewTrigger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- trig.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("trigger did not fire twice")
	}
	cancel()
	select {
	case err := <-errc:
		if err != context.Canceled {
			t.Errorf("Run: got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
