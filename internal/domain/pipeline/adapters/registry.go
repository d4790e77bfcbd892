// Package adapters hosts the source adapter registry. Site-specific
// adapters are external collaborators; they register here by source name
// and the core treats them as opaque record producers.
package adapters

import (
	"sync"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
)

// Registry is a static, concurrency-safe adapter registry
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]deps.SourceAdapter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]deps.SourceAdapter)}
}

// Register installs an adapter under its source name; the last registration
// for a name wins
func (r *Registry) Register(adapter deps.SourceAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Name()] = adapter
}

// Adapter resolves the adapter serving a source
func (r *Registry) Adapter(sourceName string) (deps.SourceAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[sourceName]
	return a, ok
}
