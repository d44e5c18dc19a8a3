package generatormodule

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mantonx/mediatags/internal/modules/layermodule"
)

// Generator keys referenced by layer descriptors
const (
	KeyHeuristic  = "heuristic"
	KeyClassifier = "classifier"
)

// Factory builds a generator for one layer
type Factory func(desc layermodule.Descriptor, deps Dependencies) (Generator, error)

// FactoryRegistry maps stable generator keys to factories
type FactoryRegistry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewFactoryRegistry creates an empty factory registry
func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{
		factories: make(map[string]Factory),
	}
}

// DefaultFactories returns a registry holding the built-in generators
func DefaultFactories() *FactoryRegistry {
	r := NewFactoryRegistry()
	r.Register(KeyHeuristic, NewHeuristicGenerator)
	r.Register(KeyClassifier, NewClassifierGenerator)
	return r
}

// Register adds or replaces the factory for key
func (r *FactoryRegistry) Register(key string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = factory
}

// Lookup returns the factory registered for key
func (r *FactoryRegistry) Lookup(key string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[key]
	return factory, ok
}

// Keys returns the registered generator keys in sorted order
func (r *FactoryRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.factories))
	for key := range r.factories {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Build resolves desc.Generator and invokes its factory. A panicking factory is
// reported as an error.
func (r *FactoryRegistry) Build(desc layermodule.Descriptor, deps Dependencies) (gen Generator, err error) {
	factory, ok := r.Lookup(desc.Generator)
	if !ok {
		return nil, fmt.Errorf("no generator registered for key %q", desc.Generator)
	}

	defer func() {
		if rec := recover(); rec != nil {
			gen = nil
			err = fmt.Errorf("generator factory %q panicked: %v", desc.Generator, rec)
		}
	}()

	gen, err = factory(desc, deps)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, fmt.Errorf("generator factory %q returned nil", desc.Generator)
	}
	return gen, nil
}
