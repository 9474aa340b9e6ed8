package template

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry layers named template sets. Lookups try the sets in registration
// order, so sets registered first shadow later ones; a "set:name" view
// addresses one set directly.
type Registry struct {
	mu    sync.RWMutex
	order []string
	sets  map[string]CompiledTemplates
}

var _ CompiledTemplates = (*Registry)(nil)

// NewRegistry creates an empty registry instance.
func NewRegistry() *Registry {
	return &Registry{
		sets: make(map[string]CompiledTemplates),
	}
}

// Register adds a template set under name. Duplicate names return an error.
func (r *Registry) Register(name string, set CompiledTemplates) error {
	if set == nil {
		return fmt.Errorf("template: template set is required")
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, ":") {
		return fmt.Errorf("template: invalid set name %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sets[name]; exists {
		return fmt.Errorf("template: set %q already registered", name)
	}

	r.sets[name] = set
	r.order = append(r.order, name)
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(name string, set CompiledTemplates) {
	if err := r.Register(name, set); err != nil {
		panic(err)
	}
}

// Get retrieves a template set by name.
func (r *Registry) Get(name string) (CompiledTemplates, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.sets[name]
	if !ok {
		return nil, fmt.Errorf("template: set %q not found", name)
	}
	return set, nil
}

// Sets returns the registered set names in lookup order.
func (r *Registry) Sets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Has reports whether any registered set provides view.
func (r *Registry) Has(view string) bool {
	_, _, ok := r.resolve(view)
	return ok
}

// Names returns the sorted union of template names across all sets.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, setName := range r.order {
		for _, name := range r.sets[setName].Names() {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewRenderer delegates to the first set providing view.
func (r *Registry) NewRenderer(view string, params map[string]any) (Renderer, error) {
	set, name, ok := r.resolve(view)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, view)
	}
	return set.NewRenderer(name, params)
}

func (r *Registry) resolve(view string) (CompiledTemplates, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if setName, name, ok := strings.Cut(view, ":"); ok {
		set, exists := r.sets[setName]
		if !exists || !set.Has(name) {
			return nil, "", false
		}
		return set, name, true
	}
	for _, setName := range r.order {
		if set := r.sets[setName]; set.Has(view) {
			return set, view, true
		}
	}
	return nil, "", false
}
