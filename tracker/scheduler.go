package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Clock abstracts wall time for the tracker.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// parser accepts the six-field, seconds-first specs produced by ScheduleSpec.
var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ScheduleSpec turns a period and an offset into a UTC cron spec with a
// seconds field. every must be whole minutes dividing an hour, or whole
// hours dividing a day; offset wraps modulo every.
//
//	ScheduleSpec(5*time.Minute, 30*time.Second) == "CRON_TZ=UTC 30 0/5 * * * *"
func ScheduleSpec(every, offset time.Duration) (string, error) {
	if every <= 0 || every%time.Minute != 0 {
		return "", fmt.Errorf("tracker: schedule period must be whole minutes, got %s", every)
	}
	if offset < 0 || offset%time.Second != 0 {
		return "", fmt.Errorf("tracker: schedule offset must be whole non-negative seconds, got %s", offset)
	}
	offset %= every
	sec := int(offset % time.Minute / time.Second)
	minute := int(offset / time.Minute)

	switch {
	case every <= time.Hour && time.Hour%every == 0:
		step := int(every / time.Minute)
		return fmt.Sprintf("CRON_TZ=UTC %d %d/%d * * * *", sec, minute, step), nil
	case every%time.Hour == 0 && 24*time.Hour%every == 0:
		step := int(every / time.Hour)
		return fmt.Sprintf("CRON_TZ=UTC %d %d %d/%d * * *", sec, minute%60, minute/60, step), nil
	}
	return "", fmt.Errorf("tracker: schedule period %s must divide an hour or a day", every)
}

// ParseSchedule parses a spec from ScheduleSpec.
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("tracker: parse schedule %q: %w", spec, err)
	}
	return s, nil
}

// Trigger calls fire on a cron schedule. The cron runner starts each call
// in its own goroutine; fire is expected to guard itself against overlap.
type Trigger struct {
	spec     string
	schedule cron.Schedule
	clock    Clock
	fire     func(ctx context.Context)
	logger   *slog.Logger
}

// NewTrigger creates a Trigger for spec. clock and logger may be nil.
func NewTrigger(spec string, fire func(context.Context), clock Clock, logger *slog.Logger) (*Trigger, error) {
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = realClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{spec: spec, schedule: schedule, clock: clock, fire: fire, logger: logger}, nil
}

// Next returns the next fire time after the clock's now.
func (t *Trigger) Next() time.Time {
	return t.schedule.Next(t.clock.Now()).UTC()
}

// Run blocks until ctx is done, then waits for in-flight calls.
func (t *Trigger) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{t.logger}),
	)
	if _, err := c.AddFunc(t.spec, func() { t.fire(ctx) }); err != nil {
		return fmt.Errorf("tracker: schedule: %w", err)
	}
	c.Start()
	t.logger.Info("tracker: stock schedule started", "spec", t.spec, "next", t.Next())

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// cronLogger routes cron's own messages to slog. Its Info lines are
// per-tick chatter, so they go to debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("tracker: cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("tracker: cron: "+msg, append(keysAndValues, "error", err)...)
}
