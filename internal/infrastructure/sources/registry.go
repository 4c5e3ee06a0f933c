package sources

import (
	"sort"

	"portfolio_dashboard/internal/app/port"
)

// Registry is the closed set of source adapters, resolved once at startup.
// Lookups never construct adapters; an unknown source is simply absent.
type Registry struct {
	adapters map[string]port.SourceAdapter
}

// NewRegistry indexes the given adapters by their source key.
func NewRegistry(adapters ...port.SourceAdapter) *Registry {
	m := make(map[string]port.SourceAdapter, len(adapters))
	for _, a := range adapters {
		m[a.Source()] = a
	}
	return &Registry{adapters: m}
}

// Adapter implements port.SourceRegistry.
func (r *Registry) Adapter(source string) (port.SourceAdapter, bool) {
	a, ok := r.adapters[source]
	return a, ok
}

// Sources implements port.SourceRegistry.
func (r *Registry) Sources() []string {
	keys := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
