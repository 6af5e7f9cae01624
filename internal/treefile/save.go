package treefile

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/acctflow/procgraph/internal/process"
	"github.com/acctflow/procgraph/internal/tree"
)

// UnsavableProcessError reports a definition that cannot be written because
// it carries a bare function with no stored reference.
type UnsavableProcessError struct {
	Tree    string
	Process string
}

func (e *UnsavableProcessError) Error() string {
	return fmt.Sprintf("process '%s' in tree '%s' has no function reference and cannot be saved", e.Process, e.Tree)
}

// Save writes trees to a definition file. Every process must have been
// built with a function reference; definitions constructed from anonymous
// functions are rejected.
func Save(path string, trees ...*tree.Tree) error {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	for i, t := range trees {
		if i > 0 {
			root.AppendNewline()
		}
		block := root.AppendNewBlock("tree", []string{t.Name()})
		body := block.Body()
		for j, def := range t.Definitions() {
			if def.FuncRef == "" {
				return &UnsavableProcessError{Tree: t.Name(), Process: def.Name}
			}
			if j > 0 {
				body.AppendNewline()
			}
			writeProcess(body, def)
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create definition file %s: %w", path, err)
	}
	defer out.Close()
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write definition file %s: %w", path, err)
	}
	return nil
}

func writeProcess(parent *hclwrite.Body, def *process.Definition) {
	body := parent.AppendNewBlock("process", []string{def.Name}).Body()

	body.SetAttributeValue("func", cty.StringVal(def.FuncRef))
	if len(def.Dependencies) > 0 {
		deps := make([]cty.Value, len(def.Dependencies))
		for i, d := range def.Dependencies {
			deps[i] = cty.StringVal(d)
		}
		body.SetAttributeValue("depends_on", cty.ListVal(deps))
	}
	if def.CacheKey != "" {
		body.SetAttributeValue("cache_key", cty.StringVal(def.CacheKey))
		if def.CacheTTL > 0 {
			body.SetAttributeValue("cache_ttl", cty.StringVal(def.CacheTTL.String()))
		}
	}
	if def.ValidationRef != "" {
		body.SetAttributeValue("validate", cty.StringVal(def.ValidationRef))
	}
	if def.OutdatedCheckRef != "" {
		body.SetAttributeValue("outdated_check", cty.StringVal(def.OutdatedCheckRef))
	}
	if def.TriggerRef != "" {
		body.SetAttributeValue("trigger", cty.StringVal(def.TriggerRef))
	}
	if !def.Required {
		body.SetAttributeValue("optional", cty.BoolVal(true))
	}
	if len(def.Metadata) > 0 {
		md := make(map[string]cty.Value, len(def.Metadata))
		for k, v := range def.Metadata {
			md[k] = cty.StringVal(v)
		}
		body.SetAttributeValue("metadata", cty.MapVal(md))
	}
}
