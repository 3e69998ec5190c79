package stage

import (
	"fmt"
	"sort"
)

// Registry holds the stage catalog and validates its DAG shape: unique names,
// unique execution orders, and every dependency registered with a strictly
// smaller order. Ordered() then serves as the stable topological walk.
type Registry struct {
	byName map[string]Stage
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Stage)}
}

// Register adds a stage. Duplicate names are rejected.
func (r *Registry) Register(s Stage) error {
	if s.Name() == "" {
		return fmt.Errorf("stage has empty name")
	}
	if _, ok := r.byName[s.Name()]; ok {
		return fmt.Errorf("stage %s registered twice", s.Name())
	}
	r.byName[s.Name()] = s
	return nil
}

// Validate checks the catalog invariants after all stages are registered.
func (r *Registry) Validate() error {
	orders := make(map[int]string, len(r.byName))
	for name, s := range r.byName {
		if prev, ok := orders[s.ExecutionOrder()]; ok {
			return fmt.Errorf("stages %s and %s share execution order %d", prev, name, s.ExecutionOrder())
		}
		orders[s.ExecutionOrder()] = name
		for _, dep := range s.DependsOn() {
			d, ok := r.byName[dep]
			if !ok {
				return fmt.Errorf("stage %s depends on unregistered stage %s", name, dep)
			}
			if d.ExecutionOrder() >= s.ExecutionOrder() {
				return fmt.Errorf("stage %s (order %d) depends on %s (order %d): dependency must come first",
					name, s.ExecutionOrder(), dep, d.ExecutionOrder())
			}
		}
	}
	return nil
}

// Get returns a stage by name.
func (r *Registry) Get(name string) (Stage, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Len returns the catalog size.
func (r *Registry) Len() int { return len(r.byName) }

// Ordered returns the stages sorted by execution order. Validate guarantees
// this is a topological order of the dependency DAG.
func (r *Registry) Ordered() []Stage {
	out := make([]Stage, 0, len(r.byName))
	for _, s := range r.byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExecutionOrder() < out[j].ExecutionOrder()
	})
	return out
}
