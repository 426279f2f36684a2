// Package tool is the controlled dispatch layer for side effects. Nothing in
// the pipeline calls an external system directly; every effect flows through
// the gate, which validates input, sanitizes output, and logs the call.
package tool

import (
	"context"
	"fmt"
	"sort"
)

// Definition is one registered tool. Validate rejects bad input before
// dispatch; Run performs the call and returns a raw result map that the gate
// sanitizes before the model can see it.
type Definition struct {
	Name        string
	Description string
	Validate    func(params map[string]any) error
	Run         func(ctx context.Context, params map[string]any) (map[string]any, error)
}

// Registry holds the tools a gate is allowed to dispatch.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry builds a registry from the given definitions. Every definition
// must carry a name and a handler; a duplicate name is a wiring bug.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds one definition.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool definition without a name")
	}
	if def.Run == nil {
		return fmt.Errorf("tool %q has no handler", def.Name)
	}
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tool %q registered twice", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Lookup returns the definition for a tool name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Names returns the registered tool names, sorted for stable prompts.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func requireString(params map[string]any, key string) error {
	v, ok := params[key]
	if !ok {
		return fmt.Errorf("falta el parámetro %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return fmt.Errorf("el parámetro %q debe ser un texto no vacío", key)
	}
	return nil
}

func stringParam(params map[string]any, key, fallback string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}
