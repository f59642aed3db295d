package pipeline

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// ResourceProvider creates and destroys one kind of per request resource.
type ResourceProvider interface {
	Create(ctx context.Context) (any, error)
	Destroy(ctx context.Context, resource any) error
}

// ProviderFuncs adapts a pair of functions to ResourceProvider. A nil
// DestroyFunc makes Destroy a no-op.
type ProviderFuncs struct {
	CreateFunc  func(ctx context.Context) (any, error)
	DestroyFunc func(ctx context.Context, resource any) error
}

func (p ProviderFuncs) Create(ctx context.Context) (any, error) {
	return p.CreateFunc(ctx)
}

func (p ProviderFuncs) Destroy(ctx context.Context, resource any) error {
	if p.DestroyFunc == nil {
		return nil
	}
	return p.DestroyFunc(ctx, resource)
}

// Providers maps resource names to their providers.
type Providers struct {
	mu     sync.RWMutex
	byName map[string]ResourceProvider
}

func NewProviders() *Providers {
	return &Providers{byName: make(map[string]ResourceProvider)}
}

// Register adds or replaces the provider for name.
func (p *Providers) Register(name string, provider ResourceProvider) *Providers {
	name = strings.TrimSpace(name)
	if name == "" || provider == nil {
		return p
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byName[name] = provider
	return p
}

func (p *Providers) Lookup(name string) (ResourceProvider, bool) {
	if p == nil {
		return nil, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	provider, ok := p.byName[name]
	return provider, ok
}

// Names returns the registered resource names in sorted order.
func (p *Providers) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.byName))
	for name := range p.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
