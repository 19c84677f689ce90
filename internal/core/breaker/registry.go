package breaker

import (
	"sync"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/ledgermate/governor/internal/core"
)

// Registry holds one independently tuned breaker per protected dependency.
type Registry struct {
	mu       sync.RWMutex
	breakers map[core.Dependency]*Breaker
}

// NewRegistry builds breakers from per-dependency configs. Dependencies
// missing from configs get no breaker; their calls pass through unguarded.
func NewRegistry(configs map[core.Dependency]Config, classifier Classifier, log *logging.Logger) *Registry {
	breakers := make(map[core.Dependency]*Breaker, len(configs))
	for dep, cfg := range configs {
		breakers[dep] = New(string(dep), cfg, classifier, log)
	}
	return &Registry{breakers: breakers}
}

// Get returns the breaker for a dependency, or nil when it is unguarded.
func (r *Registry) Get(dep core.Dependency) *Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[dep]
}

// States returns the current state label of every registered breaker.
func (r *Registry) States() map[core.Dependency]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[core.Dependency]string, len(r.breakers))
	for dep, b := range r.breakers {
		out[dep] = b.State().String()
	}
	return out
}
