// File: internal/usecase/validate.go
package usecase

import (
	"fmt"

	"agent-compute-platform/internal/domain"
)

// Structural validation of tool arguments: a declared field list plus types
// validates and fills a generic key-value map, instead of synthesizing typed
// schemas at runtime.

type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldBool   FieldType = "bool"
	FieldList   FieldType = "list"
	FieldMap    FieldType = "map"
)

type FieldSpec struct {
	Name     string
	Type     FieldType
	Required bool
	Default  any
}

// ToolSpec declares one invocable tool: its parameter list and whether its
// submissions are long-running.
type ToolSpec struct {
	Name        string
	LongRunning bool
	Fields      []FieldSpec
}

// reservedArgKeys are injected by guards after validation and therefore
// always admissible.
var reservedArgKeys = map[string]struct{}{
	"access_key":    {},
	"project_id":    {},
	"username":      {},
	"ticket":        {},
	"environment":   {},
	"origin_job_id": {},
}

// ValidateArgs checks args against the declared fields, fills defaults for
// absent optional fields and rejects undeclared keys and type mismatches.
func (t ToolSpec) ValidateArgs(args map[string]any) error {
	declared := make(map[string]FieldSpec, len(t.Fields))
	for _, f := range t.Fields {
		declared[f.Name] = f
	}

	for k := range args {
		if _, ok := declared[k]; ok {
			continue
		}
		if _, ok := reservedArgKeys[k]; ok {
			continue
		}
		return fmt.Errorf("%w: undeclared argument %q for tool %s", domain.ErrInvalidArgument, k, t.Name)
	}

	for _, f := range t.Fields {
		v, present := args[f.Name]
		if !present {
			if f.Required {
				return fmt.Errorf("%w: missing required argument %q for tool %s", domain.ErrInvalidArgument, f.Name, t.Name)
			}
			if f.Default != nil {
				args[f.Name] = f.Default
			}
			continue
		}
		if !typeMatches(f.Type, v) {
			return fmt.Errorf("%w: argument %q of tool %s must be %s", domain.ErrInvalidArgument, f.Name, t.Name, f.Type)
		}
	}
	return nil
}

func typeMatches(t FieldType, v any) bool {
	switch t {
	case FieldString:
		_, ok := v.(string)
		return ok
	case FieldNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case FieldBool:
		_, ok := v.(bool)
		return ok
	case FieldList:
		_, ok := v.([]any)
		return ok
	case FieldMap:
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

// ToolRegistry is the set of declared tools the pipeline will execute.
type ToolRegistry struct {
	tools map[string]ToolSpec
}

func NewToolRegistry(specs ...ToolSpec) *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]ToolSpec, len(specs)+1)}
	// The control tool is always declared; it carries free-form routing args.
	r.tools[ControlToolTransfer] = ToolSpec{
		Name: ControlToolTransfer,
		Fields: []FieldSpec{
			{Name: "agent", Type: FieldString, Required: true},
			{Name: "reason", Type: FieldString},
		},
	}
	for _, s := range specs {
		r.tools[s.Name] = s
	}
	return r
}

func (r *ToolRegistry) Lookup(name string) (ToolSpec, bool) {
	s, ok := r.tools[name]
	return s, ok
}

func (r *ToolRegistry) Register(spec ToolSpec) { r.tools[spec.Name] = spec }
