package ledger

import (
	"context"
	"time"

	"github.com/acctflow/procgraph/internal/engine"
	"github.com/acctflow/procgraph/internal/process"
	"github.com/acctflow/procgraph/internal/trigger"
)

// Checkers derives engine collaborators (outdated checks, last-update
// reporters, sync checks) from an UpdateStore.
type Checkers struct {
	store         UpdateStore
	defaultMaxAge time.Duration
	maxAges       map[string]time.Duration
	now           func() time.Time
}

// NewCheckers wraps store. Endpoints with no explicit max age use
// defaultMaxAge; a zero defaultMaxAge means data never goes stale by age
// alone.
func NewCheckers(store UpdateStore, defaultMaxAge time.Duration) *Checkers {
	return &Checkers{
		store:         store,
		defaultMaxAge: defaultMaxAge,
		maxAges:       make(map[string]time.Duration),
		now:           time.Now,
	}
}

// NewCheckersWithClock is NewCheckers with an injectable clock.
func NewCheckersWithClock(store UpdateStore, defaultMaxAge time.Duration, now func() time.Time) *Checkers {
	c := NewCheckers(store, defaultMaxAge)
	c.now = now
	return c
}

// SetMaxAge overrides the staleness threshold for one endpoint.
func (c *Checkers) SetMaxAge(endpoint string, maxAge time.Duration) {
	c.maxAges[endpoint] = maxAge
}

func (c *Checkers) maxAge(endpoint string) time.Duration {
	if d, ok := c.maxAges[endpoint]; ok {
		return d
	}
	return c.defaultMaxAge
}

// stale reports whether endpoint needs a refresh. Never-synced endpoints
// are always stale.
func (c *Checkers) stale(ctx context.Context, endpoint string) (bool, error) {
	last, err := c.store.LastUpdate(ctx, endpoint)
	if err != nil {
		return false, err
	}
	if last.IsZero() {
		return true, nil
	}
	maxAge := c.maxAge(endpoint)
	if maxAge <= 0 {
		return false, nil
	}
	return c.now().Sub(last) > maxAge, nil
}

// Outdated returns the staleness predicate for endpoint, in the shape a
// process definition expects.
func (c *Checkers) Outdated(endpoint string) process.OutdatedCheckFunc {
	return func(ctx context.Context, _ map[string]any) (bool, error) {
		return c.stale(ctx, endpoint)
	}
}

// LastUpdated returns the last-update reporter for endpoint, in the shape
// a staleness trigger expects.
func (c *Checkers) LastUpdated(endpoint string) trigger.LastUpdatedFunc {
	return func(ctx context.Context) (time.Time, error) {
		return c.store.LastUpdate(ctx, endpoint)
	}
}

// SyncCheck builds a sync checker over the given endpoints. An endpoint
// whose store lookup fails is reported out of sync with the error attached
// rather than failing the whole check.
func (c *Checkers) SyncCheck(endpoints ...string) engine.SyncCheckFunc {
	return func(ctx context.Context, _ map[string]any) (*engine.SyncReport, error) {
		report := &engine.SyncReport{Details: make(map[string]engine.SyncDetail, len(endpoints))}
		for _, endpoint := range endpoints {
			stale, err := c.stale(ctx, endpoint)
			if err != nil {
				report.OutOfSync = append(report.OutOfSync, endpoint)
				report.Details[endpoint] = engine.SyncDetail{OutOfSync: true, Error: err.Error()}
				continue
			}
			report.Details[endpoint] = engine.SyncDetail{OutOfSync: stale}
			if stale {
				report.OutOfSync = append(report.OutOfSync, endpoint)
			}
		}
		return report, nil
	}
}
