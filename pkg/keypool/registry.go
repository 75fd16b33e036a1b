package keypool

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry holds one Pool per provider. Pools are created once and live as
// long as the registry; a provider that is configured again keeps its pool.
type Registry struct {
	mu     sync.RWMutex
	pools  map[string]*Pool
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		pools:  make(map[string]*Pool),
		logger: logger,
	}
}

// Add creates the pool for provider unless one exists, and returns it.
func (r *Registry) Add(provider string, keys []string) *Pool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pools[provider]; ok {
		return p
	}
	p := New(provider, keys, r.logger)
	r.pools[provider] = p
	return p
}

// Get returns the pool for provider.
func (r *Registry) Get(provider string) (*Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[provider]
	return p, ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pools))
	for name := range r.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Statuses returns a snapshot of every pool, sorted by provider.
func (r *Registry) Statuses() []Status {
	names := r.Names()
	out := make([]Status, 0, len(names))
	for _, name := range names {
		if p, ok := r.Get(name); ok {
			out = append(out, p.Status())
		}
	}
	return out
}

// ResetAll clears the exhausted marks of every pool.
func (r *Registry) ResetAll() {
	for _, name := range r.Names() {
		if p, ok := r.Get(name); ok {
			p.ResetExhausted()
		}
	}
}

// Exhausted returns the providers that have keys but none available,
// sorted by name.
func (r *Registry) Exhausted() []string {
	var out []string
	for _, st := range r.Statuses() {
		if st.KeyCount > 0 && st.Available == 0 {
			out = append(out, st.Provider)
		}
	}
	return out
}
