// Package trigger decides whether a process should execute this cycle.
// Triggers are consulted by the executor through a single predicate method;
// the engine never inspects what kind of trigger sits behind a reference.
//
// Five variants exist: condition (compare a context field), schedule
// (interval elapsed), event (named event present in context), custom
// (resolved predicate function), and outdated-check (tracked data older
// than a maximum age).
package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Trigger reports whether its process should run given the current
// execution context. Evaluation errors mean the trigger could not decide;
// the store logs them and treats the trigger as not fired.
type Trigger interface {
	ShouldTrigger(ctx context.Context, args map[string]any) (bool, error)
}

// PredicateFunc backs a Custom trigger.
type PredicateFunc func(ctx context.Context, args map[string]any) (bool, error)

// Condition operators.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpExists      = "exists"
	OpNotExists   = "not_exists"
)

// Condition fires when a context field compares favourably against a fixed
// value.
type Condition struct {
	Field    string
	Operator string
	Value    any
}

// ShouldTrigger implements Trigger.
func (c *Condition) ShouldTrigger(_ context.Context, args map[string]any) (bool, error) {
	if c.Field == "" {
		return false, nil
	}
	got, present := args[c.Field]

	switch c.Operator {
	case OpEquals, "":
		return present && got == c.Value, nil
	case OpNotEquals:
		return !present || got != c.Value, nil
	case OpGreaterThan:
		a, b, err := numericPair(got, c.Value)
		if err != nil {
			return false, err
		}
		return present && a > b, nil
	case OpLessThan:
		a, b, err := numericPair(got, c.Value)
		if err != nil {
			return false, err
		}
		return present && a < b, nil
	case OpExists:
		return present && got != nil, nil
	case OpNotExists:
		return !present || got == nil, nil
	}
	return false, fmt.Errorf("unknown condition operator '%s'", c.Operator)
}

func numericPair(a, b any) (float64, float64, error) {
	af, err := toFloat(a)
	if err != nil {
		return 0, 0, err
	}
	bf, err := toFloat(b)
	if err != nil {
		return 0, 0, err
	}
	return af, bf, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case nil:
		return 0, fmt.Errorf("cannot compare nil numerically")
	}
	return 0, fmt.Errorf("cannot compare %T numerically", v)
}

// Schedule fires when Interval has elapsed since the last firing. A
// schedule that never fired fires immediately.
type Schedule struct {
	Interval time.Duration

	mu        sync.Mutex
	lastFired time.Time
	now       func() time.Time
}

// NewSchedule returns an interval trigger using the wall clock.
func NewSchedule(interval time.Duration) *Schedule {
	return NewScheduleWithClock(interval, time.Now)
}

// NewScheduleWithClock is NewSchedule with an injectable clock for tests.
func NewScheduleWithClock(interval time.Duration, now func() time.Time) *Schedule {
	return &Schedule{Interval: interval, now: now}
}

// ShouldTrigger implements Trigger. A firing records the time so the next
// evaluation starts a fresh interval.
func (s *Schedule) ShouldTrigger(_ context.Context, _ map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !s.lastFired.IsZero() && now.Before(s.lastFired.Add(s.Interval)) {
		return false, nil
	}
	s.lastFired = now
	return true, nil
}

// Event fires when its name appears in the context's "events" entry, which
// callers populate as a []string.
type Event struct {
	Name string
}

// ShouldTrigger implements Trigger.
func (e *Event) ShouldTrigger(_ context.Context, args map[string]any) (bool, error) {
	if e.Name == "" {
		return false, nil
	}
	events, _ := args["events"].([]string)
	for _, name := range events {
		if name == e.Name {
			return true, nil
		}
	}
	return false, nil
}

// Custom delegates to a resolved predicate function.
type Custom struct {
	Ref string
	Fn  PredicateFunc
}

// ShouldTrigger implements Trigger.
func (c *Custom) ShouldTrigger(ctx context.Context, args map[string]any) (bool, error) {
	if c.Fn == nil {
		return false, fmt.Errorf("custom trigger '%s' has no predicate", c.Ref)
	}
	return c.Fn(ctx, args)
}

// LastUpdatedFunc reports when tracked data was last refreshed. A zero time
// means never.
type LastUpdatedFunc func(ctx context.Context) (time.Time, error)

// OutdatedCheck fires when tracked data was never refreshed or is older
// than MaxAge. A zero MaxAge fires only on never-refreshed data.
type OutdatedCheck struct {
	MaxAge      time.Duration
	LastUpdated LastUpdatedFunc

	now func() time.Time
}

// NewOutdatedCheck returns a staleness trigger using the wall clock.
func NewOutdatedCheck(maxAge time.Duration, lastUpdated LastUpdatedFunc) *OutdatedCheck {
	return NewOutdatedCheckWithClock(maxAge, lastUpdated, time.Now)
}

// NewOutdatedCheckWithClock is NewOutdatedCheck with an injectable clock.
func NewOutdatedCheckWithClock(maxAge time.Duration, lastUpdated LastUpdatedFunc, now func() time.Time) *OutdatedCheck {
	return &OutdatedCheck{MaxAge: maxAge, LastUpdated: lastUpdated, now: now}
}

// ShouldTrigger implements Trigger.
func (o *OutdatedCheck) ShouldTrigger(ctx context.Context, _ map[string]any) (bool, error) {
	if o.LastUpdated == nil {
		return false, fmt.Errorf("outdated-check trigger has no last-update source")
	}
	last, err := o.LastUpdated(ctx)
	if err != nil {
		return false, err
	}
	if last.IsZero() {
		return true, nil
	}
	if o.MaxAge > 0 && o.now().Sub(last) > o.MaxAge {
		return true, nil
	}
	return false, nil
}
