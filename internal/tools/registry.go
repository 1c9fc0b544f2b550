package tools

import (
	"fmt"
	"strings"
)

func cloneDefinition(d *Definition) Definition {
	c := *d
	if d.Args != nil {
		c.Args = append([]Arg(nil), d.Args...)
	}
	return c
}

// Registry holds the tool catalog. It is populated once by NewRegistry and
// is read-only afterwards, so it needs no locking.
type Registry struct {
	defs   []Definition
	byName map[string]int
}

// NewRegistry builds a registry from definitions, preserving their order.
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{
		defs:   make([]Definition, 0, len(defs)),
		byName: make(map[string]int, len(defs)),
	}
	for i := range defs {
		d := &defs[i]
		if d.Name == "" {
			return nil, fmt.Errorf("tool name cannot be empty")
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", d.Name)
		}
		seen := make(map[string]bool, len(d.Args))
		for _, a := range d.Args {
			if a.Name == "" || seen[a.Name] {
				return nil, fmt.Errorf("tool %q: invalid or duplicate argument %q", d.Name, a.Name)
			}
			seen[a.Name] = true
		}
		r.byName[d.Name] = len(r.defs)
		r.defs = append(r.defs, cloneDefinition(d))
	}
	return r, nil
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Definition{}, false
	}
	// Return a deep copy to prevent external mutation
	return cloneDefinition(&r.defs[i]), true
}

// List returns all definitions in catalog order.
func (r *Registry) List() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for i := range r.defs {
		out = append(out, cloneDefinition(&r.defs[i]))
	}
	return out
}

// Names returns the tool names in catalog order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for _, d := range r.defs {
		names = append(names, d.Name)
	}
	return names
}

// Count returns the number of tools.
func (r *Registry) Count() int {
	return len(r.defs)
}

// Catalog renders a compact one-line-per-tool summary, e.g.
//
//	tasks.complete(id*: string, note: string) - Complete a task and grant its rewards
//
// Required arguments carry a trailing asterisk.
func (r *Registry) Catalog() string {
	var b strings.Builder
	for _, d := range r.defs {
		b.WriteString(d.Name)
		b.WriteByte('(')
		for i, a := range d.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.Name)
			if a.Required {
				b.WriteByte('*')
			}
			b.WriteString(": ")
			b.WriteString(string(a.Type))
		}
		b.WriteByte(')')
		if d.Description != "" {
			b.WriteString(" - ")
			b.WriteString(d.Description)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
