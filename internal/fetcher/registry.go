package fetcher

import (
	"fmt"
	"sort"
)

// Registry maps store names to their fetchers.
type Registry struct {
	fetchers map[string]Fetcher
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[string]Fetcher)}
}

// Register binds a store name to a fetcher, replacing any previous binding.
func (r *Registry) Register(store string, f Fetcher) {
	r.fetchers[store] = f
}

// Lookup returns the fetcher for a store.
func (r *Registry) Lookup(store string) (Fetcher, error) {
	f, ok := r.fetchers[store]
	if !ok {
		return nil, fmt.Errorf("no fetcher registered for store %q", store)
	}
	return f, nil
}

// Stores returns the registered store names, sorted.
func (r *Registry) Stores() []string {
	names := make([]string, 0, len(r.fetchers))
	for name := range r.fetchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
