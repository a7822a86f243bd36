package tenant

import (
	"context"
	"sync"
)

// Provider loads tenant metadata by identifier. Lookup returns
// [ErrUnknownTenant] for tenants it does not know.
type Provider interface {
	Lookup(ctx context.Context, id string) (*Context, error)
}

// StaticProvider serves tenants from memory.
type StaticProvider struct {
	mu      sync.RWMutex
	tenants map[string]Context
}

// NewStaticProvider creates a provider holding tenants.
func NewStaticProvider(tenants ...Context) *StaticProvider {
	p := &StaticProvider{tenants: make(map[string]Context, len(tenants))}
	for _, t := range tenants {
		p.tenants[t.ID] = t
	}
	return p
}

// Put adds or replaces a tenant.
func (p *StaticProvider) Put(t Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tenants[t.ID] = t
}

// Lookup implements [Provider].
func (p *StaticProvider) Lookup(_ context.Context, id string) (*Context, error) {
	p.mu.RLock()
	t, ok := p.tenants[id]
	p.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownTenant
	}
	return &t, nil
}
