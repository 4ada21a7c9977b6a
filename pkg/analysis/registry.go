package analysis

import (
	"fmt"
	"sort"
	"sync"
)

// defaultRegistry holds detectors registered through the package-level functions.
var defaultRegistry = NewRegistry()

// Registry stores detectors by name.
type Registry struct {
	mu         sync.RWMutex
	detectors  map[string]Detector // keyed by name
	byArgument map[string]string   // argument -> name
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		detectors:  make(map[string]Detector),
		byArgument: make(map[string]string),
	}
}

// Default returns the package-level registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a detector. Names and arguments must be unique.
func (r *Registry) Register(d Detector) error {
	if d == nil || d.Name() == "" {
		return fmt.Errorf("detector must have a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.detectors[d.Name()]; ok {
		return fmt.Errorf("detector %q already registered", d.Name())
	}
	if arg := d.Argument(); arg != "" {
		if owner, ok := r.byArgument[arg]; ok {
			return fmt.Errorf("detector %q: argument %q already used by %q", d.Name(), arg, owner)
		}
		r.byArgument[arg] = d.Name()
	}
	r.detectors[d.Name()] = d
	return nil
}

// MustRegister is Register that panics on error.
// Call it from init() functions in detector packages.
func (r *Registry) MustRegister(d Detector) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Get returns the detector registered under name.
func (r *Registry) Get(name string) (Detector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.detectors[name]
	return d, ok
}

// GetByArgument returns the detector registered with the given argument slug.
func (r *Registry) GetByArgument(arg string) (Detector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byArgument[arg]
	if !ok {
		return nil, false
	}
	return r.detectors[name], true
}

// All returns every detector sorted by name.
func (r *Registry) All() []Detector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Detector, 0, len(r.detectors))
	for _, d := range r.detectors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Count returns the number of registered detectors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.detectors)
}

// Register adds a detector to the default registry.
func Register(d Detector) error {
	return defaultRegistry.Register(d)
}

// Get returns a detector from the default registry.
func Get(name string) (Detector, bool) {
	return defaultRegistry.Get(name)
}
