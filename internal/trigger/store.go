package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acctflow/procgraph/internal/ctxlog"
)

// State is the manual override state of a registered trigger. External
// processes can force or re-arm triggers without knowing their kind.
type State string

const (
	// StatePending defers entirely to the trigger's own evaluation.
	StatePending State = "pending"
	// StateFired forces evaluation to pass until the trigger is reset.
	StateFired State = "fired"
	// StateReset re-arms automatic evaluation on the next check.
	StateReset State = "reset"
)

// ErrNotFound reports an unknown trigger name.
type ErrNotFound struct {
	Name string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("trigger '%s' not found", e.Name)
}

type registered struct {
	trigger       Trigger
	enabled       bool
	state         State
	lastChecked   time.Time
	lastTriggered time.Time
	count         int
}

// Store registers triggers by name and evaluates them on behalf of the
// executor, layering enable/disable and manual fire/reset state over each
// trigger's own logic. It also records which tree is subscribed to which
// trigger so external events can execute whole trees.
type Store struct {
	mu       sync.Mutex
	triggers map[string]*registered
	subs     map[string]string // tree name -> trigger name
	now      func() time.Time
}

// NewStore returns an empty trigger store.
func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock is NewStore with an injectable clock.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		triggers: make(map[string]*registered),
		subs:     make(map[string]string),
		now:      now,
	}
}

// Register adds a trigger under name, enabled and pending.
func (s *Store) Register(name string, t Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.triggers[name]; exists {
		return fmt.Errorf("trigger '%s' already registered", name)
	}
	s.triggers[name] = &registered{trigger: t, enabled: true, state: StatePending}
	return nil
}

// Lookup reports whether a trigger with the given name exists.
func (s *Store) Lookup(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.triggers[name]
	return ok
}

// Evaluate runs the full firing decision for a named trigger: disabled
// triggers never fire, a manually fired trigger always fires until reset,
// and otherwise the trigger's own evaluation decides. Evaluation errors are
// logged and count as "did not fire"; only an unknown name is an error.
func (s *Store) Evaluate(ctx context.Context, name string, args map[string]any) (bool, error) {
	s.mu.Lock()
	reg, ok := s.triggers[name]
	if !ok {
		s.mu.Unlock()
		return false, &ErrNotFound{Name: name}
	}
	if !reg.enabled {
		s.mu.Unlock()
		return false, nil
	}
	if reg.state == StateFired {
		s.mu.Unlock()
		return true, nil
	}
	if reg.state == StateReset {
		reg.state = StatePending
	}
	reg.lastChecked = s.now()
	t := reg.trigger
	s.mu.Unlock()

	fired, err := t.ShouldTrigger(ctx, args)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Trigger evaluation failed, treating as not fired.",
			"trigger", name, "error", err)
		return false, nil
	}

	if fired {
		s.mu.Lock()
		reg.lastTriggered = s.now()
		reg.count++
		s.mu.Unlock()
	}
	return fired, nil
}

// Fire forces the named trigger into the fired state.
func (s *Store) Fire(name string) error {
	return s.setState(name, StateFired)
}

// Reset re-arms the named trigger.
func (s *Store) Reset(name string) error {
	return s.setState(name, StateReset)
}

func (s *Store) setState(name string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.triggers[name]
	if !ok {
		return &ErrNotFound{Name: name}
	}
	reg.state = state
	return nil
}

// SetEnabled toggles a trigger without unregistering it.
func (s *Store) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.triggers[name]
	if !ok {
		return &ErrNotFound{Name: name}
	}
	reg.enabled = enabled
	return nil
}

// FireCount returns how many times the named trigger has fired through
// evaluation.
func (s *Store) FireCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg, ok := s.triggers[name]; ok {
		return reg.count
	}
	return 0
}

// Subscribe associates a tree with a trigger. A tree subscribes to at most
// one trigger; re-subscribing replaces the previous association.
func (s *Store) Subscribe(treeName, triggerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.triggers[triggerName]; !ok {
		return &ErrNotFound{Name: triggerName}
	}
	s.subs[treeName] = triggerName
	return nil
}

// Unsubscribe removes a tree's trigger association, reporting whether one
// existed.
func (s *Store) Unsubscribe(treeName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[treeName]
	delete(s.subs, treeName)
	return ok
}

// Subscription returns the trigger a tree is subscribed to.
func (s *Store) Subscription(treeName string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.subs[treeName]
	return name, ok
}

// Subscriptions returns the trees subscribed to a trigger, in no particular
// order.
func (s *Store) Subscriptions(triggerName string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var trees []string
	for treeName, trig := range s.subs {
		if trig == triggerName {
			trees = append(trees, treeName)
		}
	}
	return trees
}
