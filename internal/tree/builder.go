package tree

import (
	"time"

	"github.com/acctflow/procgraph/internal/process"
)

// Builder assembles a tree incrementally. Add calls accumulate definitions;
// Build validates the whole graph once and hands back the finished tree.
// Errors are deferred to Build so call sites can stay fluent.
type Builder struct {
	tree *Tree
	errs []error
}

// Option configures a single process definition added through a Builder.
type Option func(*process.Definition)

// WithDependencies declares the processes this one depends on.
func WithDependencies(names ...string) Option {
	return func(d *process.Definition) { d.Dependencies = names }
}

// WithCache stores successful results under key. A zero ttl never expires.
func WithCache(key string, ttl time.Duration) Option {
	return func(d *process.Definition) {
		d.CacheKey = key
		d.CacheTTL = ttl
	}
}

// WithValidation attaches a result validator.
func WithValidation(fn process.ValidateFunc) Option {
	return func(d *process.Definition) { d.Validate = fn }
}

// WithOutdatedCheck attaches a staleness predicate; the process is skipped
// when the predicate reports the underlying data is current.
func WithOutdatedCheck(fn process.OutdatedCheckFunc) Option {
	return func(d *process.Definition) { d.OutdatedCheck = fn }
}

// WithTrigger names an externally registered trigger consulted before the
// process runs.
func WithTrigger(ref string) Option {
	return func(d *process.Definition) { d.TriggerRef = ref }
}

// WithMetadata attaches opaque key-value metadata.
func WithMetadata(md map[string]string) Option {
	return func(d *process.Definition) { d.Metadata = md }
}

// Optional marks the process as non-gating: its failure neither blocks tree
// success nor cascades to dependents.
func Optional() Option {
	return func(d *process.Definition) { d.Required = false }
}

// WithRefs records the persistence references for the function, validator
// and outdated check. Definition files store these instead of code.
func WithRefs(funcRef, validationRef, outdatedCheckRef string) Option {
	return func(d *process.Definition) {
		d.FuncRef = funcRef
		d.ValidationRef = validationRef
		d.OutdatedCheckRef = outdatedCheckRef
	}
}

// NewBuilder starts a builder for a tree with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{tree: New(name)}
}

// Add appends a process definition. Processes are required by default.
func (b *Builder) Add(name string, fn process.Func, opts ...Option) *Builder {
	def := &process.Definition{
		Name:     name,
		Func:     fn,
		Required: true,
	}
	for _, opt := range opts {
		opt(def)
	}
	if err := b.tree.Add(def); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Build validates the accumulated definitions and returns the tree. The
// first accumulated error (duplicate name, missing function, unknown
// dependency, cycle) is returned instead.
func (b *Builder) Build() (*Tree, error) {
	for _, err := range b.errs {
		return nil, err
	}
	if err := b.tree.Validate(); err != nil {
		return nil, err
	}
	return b.tree, nil
}
