package adapters

import (
	"fmt"
	"sort"
	"sync"
)

// DialectConstructor builds a ready-to-use dialect.
type DialectConstructor func() Dialect

// Registry maps dialect names to constructors. Hosts create their own
// registry and register the dialects they link; nothing registers itself
// at import time.
type Registry struct {
	registry map[string]DialectConstructor
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		registry: make(map[string]DialectConstructor),
	}
}

// Register adds or replaces the constructor for name.
//
// Example:
//
//	reg := adapters.NewRegistry()
//	reg.Register("mssql", func() adapters.Dialect { return mssql.New(mssql.Options{}) })
func (r *Registry) Register(name string, constructor DialectConstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registry[name] = constructor
}

// Unregister removes name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.registry, name)
}

// IsRegistered reports whether name has a constructor.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.registry[name]
	return ok
}

// Names returns the registered dialect names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds the dialect registered under name.
func (r *Registry) Create(name string) (Dialect, error) {
	r.mu.RLock()
	constructor, ok := r.registry[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown dialect: %s (available: %v)", name, r.Names())
	}
	return constructor(), nil
}
