package llmprovider

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Registry routes a model identifier to the Provider that can serve it.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider // keyed by Provider.Name()
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds or replaces the provider under its own Name().
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Resolve parses model and returns the provider registered for its backend
// kind, erroring if that kind has no provider or the provider rejects the
// model.
func (r *Registry) Resolve(model string) (Provider, Route, error) {
	route, err := ParseModel(model)
	if err != nil {
		return nil, Route{}, err
	}

	r.mu.RLock()
	p, ok := r.providers[route.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, Route{}, fmt.Errorf("no %q provider registered for model %q", route.Kind, model)
	}
	if !p.SupportsModel(route.Model) {
		return nil, Route{}, fmt.Errorf("provider %q does not support model %q", p.Name(), route.Model)
	}
	return p, route, nil
}

// Validate returns an error if no backends were registered.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.providers) == 0 {
		return fmt.Errorf("no LLM providers registered")
	}
	return nil
}

// ListProviders returns the registered backend names, for diagnostics.
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// ListModels aggregates ListModels across every registered provider,
// prefixing each with its backend kind so the result matches the routing
// convention a caller would use to address it again.
func (r *Registry) ListModels(ctx context.Context) (map[string][]string, error) {
	r.mu.RLock()
	providers := make(map[string]Provider, len(r.providers))
	for k, v := range r.providers {
		providers[k] = v
	}
	r.mu.RUnlock()

	out := make(map[string][]string, len(providers))
	var errs []string
	for kind, p := range providers {
		models, err := p.ListModels(ctx)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", kind, err))
			continue
		}
		out[kind] = models
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("all providers failed: %s", strings.Join(errs, "; "))
	}
	return out, nil
}

// Health reports per-backend reachability, keyed by provider Name().
func (r *Registry) Health(ctx context.Context) map[string]error {
	r.mu.RLock()
	providers := make(map[string]Provider, len(r.providers))
	for k, v := range r.providers {
		providers[k] = v
	}
	r.mu.RUnlock()

	out := make(map[string]error, len(providers))
	for name, p := range providers {
		out[name] = p.Health(ctx)
	}
	return out
}
