// Package treefile loads and saves tree definitions as HCL. Definition
// files carry function references, never code; every reference is resolved
// through a registry.Resolver while loading, so a dangling reference fails
// the load instead of a later run.
package treefile

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/acctflow/procgraph/internal/ctxlog"
	"github.com/acctflow/procgraph/internal/registry"
	"github.com/acctflow/procgraph/internal/tree"
	"github.com/acctflow/procgraph/internal/trigger"
)

// Extension is the file suffix LoadDir discovers.
const Extension = ".hcl"

// fileRoot decodes all top-level blocks from a single file.
type fileRoot struct {
	Trees    []*treeBlock    `hcl:"tree,block"`
	Triggers []*triggerBlock `hcl:"trigger,block"`
	Remain   hcl.Body        `hcl:",remain"`
}

type treeBlock struct {
	Name      string          `hcl:"name,label"`
	Processes []*processBlock `hcl:"process,block"`
}

type processBlock struct {
	Name          string            `hcl:"name,label"`
	Func          string            `hcl:"func"`
	DependsOn     []string          `hcl:"depends_on,optional"`
	CacheKey      string            `hcl:"cache_key,optional"`
	CacheTTL      string            `hcl:"cache_ttl,optional"`
	Validate      string            `hcl:"validate,optional"`
	OutdatedCheck string            `hcl:"outdated_check,optional"`
	Trigger       string            `hcl:"trigger,optional"`
	Optional      bool              `hcl:"optional,optional"`
	Metadata      map[string]string `hcl:"metadata,optional"`
}

type triggerBlock struct {
	Name        string `hcl:"name,label"`
	Type        string `hcl:"type"`
	Field       string `hcl:"field,optional"`
	Operator    string `hcl:"operator,optional"`
	Value       string `hcl:"value,optional"`
	Interval    string `hcl:"interval,optional"`
	Event       string `hcl:"event,optional"`
	Predicate   string `hcl:"predicate,optional"`
	MaxAge      string `hcl:"max_age,optional"`
	LastUpdated string `hcl:"last_updated,optional"`
}

// Model is the merged content of one or more definition files.
type Model struct {
	Trees    []*tree.Tree
	Triggers map[string]trigger.Trigger
}

// Loader parses definition files and resolves their references.
type Loader struct {
	resolver *registry.Resolver
}

// NewLoader creates a loader backed by the given resolver.
func NewLoader(resolver *registry.Resolver) *Loader {
	return &Loader{resolver: resolver}
}

// Load parses and resolves the given definition files into a single model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Tree definition loader started.", "path_count", len(paths))

	model := &Model{Triggers: make(map[string]trigger.Trigger)}
	parser := hclparse.NewParser()

	for _, path := range paths {
		hclFile, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse definition file %s: %w", path, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode definition file %s: %w", path, diags)
		}

		for _, tb := range root.Trees {
			t, err := l.buildTree(tb)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", path, err)
			}
			model.Trees = append(model.Trees, t)
		}
		for _, trb := range root.Triggers {
			if _, exists := model.Triggers[trb.Name]; exists {
				return nil, fmt.Errorf("in %s: duplicate trigger '%s'", path, trb.Name)
			}
			tr, err := l.buildTrigger(trb)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", path, err)
			}
			model.Triggers[trb.Name] = tr
		}
	}

	logger.Debug("Tree definitions loaded.",
		"trees", len(model.Trees), "triggers", len(model.Triggers))
	return model, nil
}

// LoadDir discovers definition files under root recursively and loads them.
func (l *Loader) LoadDir(ctx context.Context, root string) (*Model, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), Extension) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan definition directory %s: %w", root, err)
	}
	return l.Load(ctx, paths...)
}

// buildTree resolves one tree block into an executable tree. Every stored
// reference is kept on the definition so the tree can round-trip to disk.
func (l *Loader) buildTree(tb *treeBlock) (*tree.Tree, error) {
	b := tree.NewBuilder(tb.Name)
	for _, pb := range tb.Processes {
		fn, err := l.resolver.Func(pb.Func)
		if err != nil {
			return nil, fmt.Errorf("tree '%s', process '%s': %w", tb.Name, pb.Name, err)
		}

		opts := []tree.Option{
			tree.WithDependencies(pb.DependsOn...),
			tree.WithRefs(pb.Func, pb.Validate, pb.OutdatedCheck),
		}
		if pb.CacheKey != "" {
			ttl, err := parseOptionalDuration(pb.CacheTTL)
			if err != nil {
				return nil, fmt.Errorf("tree '%s', process '%s': invalid cache_ttl: %w", tb.Name, pb.Name, err)
			}
			opts = append(opts, tree.WithCache(pb.CacheKey, ttl))
		}
		if pb.Validate != "" {
			validate, err := l.resolver.Validator(pb.Validate)
			if err != nil {
				return nil, fmt.Errorf("tree '%s', process '%s': %w", tb.Name, pb.Name, err)
			}
			opts = append(opts, tree.WithValidation(validate))
		}
		if pb.OutdatedCheck != "" {
			check, err := l.resolver.OutdatedCheck(pb.OutdatedCheck)
			if err != nil {
				return nil, fmt.Errorf("tree '%s', process '%s': %w", tb.Name, pb.Name, err)
			}
			opts = append(opts, tree.WithOutdatedCheck(check))
		}
		if pb.Trigger != "" {
			opts = append(opts, tree.WithTrigger(pb.Trigger))
		}
		if pb.Metadata != nil {
			opts = append(opts, tree.WithMetadata(pb.Metadata))
		}
		if pb.Optional {
			opts = append(opts, tree.Optional())
		}
		b.Add(pb.Name, fn, opts...)
	}
	return b.Build()
}

// buildTrigger resolves one trigger block into its concrete variant.
func (l *Loader) buildTrigger(trb *triggerBlock) (trigger.Trigger, error) {
	switch trb.Type {
	case "condition":
		if trb.Field == "" || trb.Operator == "" {
			return nil, fmt.Errorf("trigger '%s': condition requires field and operator", trb.Name)
		}
		return &trigger.Condition{
			Field:    trb.Field,
			Operator: trb.Operator,
			Value:    conditionValue(trb.Value),
		}, nil
	case "schedule":
		interval, err := parseOptionalDuration(trb.Interval)
		if err != nil || interval <= 0 {
			return nil, fmt.Errorf("trigger '%s': schedule requires a positive interval", trb.Name)
		}
		return trigger.NewSchedule(interval), nil
	case "event":
		name := trb.Event
		if name == "" {
			name = trb.Name
		}
		return &trigger.Event{Name: name}, nil
	case "custom":
		fn, err := l.resolver.Predicate(trb.Predicate)
		if err != nil {
			return nil, fmt.Errorf("trigger '%s': %w", trb.Name, err)
		}
		return &trigger.Custom{Ref: trb.Predicate, Fn: fn}, nil
	case "outdated_check":
		maxAge, err := parseOptionalDuration(trb.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("trigger '%s': invalid max_age: %w", trb.Name, err)
		}
		lastUpdated, err := l.resolver.LastUpdated(trb.LastUpdated)
		if err != nil {
			return nil, fmt.Errorf("trigger '%s': %w", trb.Name, err)
		}
		return trigger.NewOutdatedCheck(maxAge, lastUpdated), nil
	default:
		return nil, fmt.Errorf("trigger '%s': unknown type '%s'", trb.Name, trb.Type)
	}
}

// conditionValue widens a stored string to the Go type the comparison
// operators expect. Numeric strings compare numerically.
func conditionValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
