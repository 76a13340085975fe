package providers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Registry manages registered providers and their health statuses.
// Declaration order is preserved; it is the tie-breaker for ranking.
type Registry struct {
	mu       sync.RWMutex
	ordered  []Provider
	byID     map[string]Provider
	statuses map[string]*ProviderStatus
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[string]Provider),
		statuses: make(map[string]*ProviderStatus),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(provider Provider) error {
	if provider == nil {
		return fmt.Errorf("cannot register nil provider")
	}

	id := provider.ID()
	if id == "" {
		return fmt.Errorf("provider must have an id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("provider %s is already registered", id)
	}

	r.byID[id] = provider
	r.ordered = append(r.ordered, provider)
	r.statuses[id] = &ProviderStatus{
		ProviderID: id,
		Status:     "Pending",
	}

	return nil
}

// Get returns a provider by id
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.byID[id]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", id)
	}

	return provider, nil
}

// All returns all registered providers in declaration order
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Provider, len(r.ordered))
	copy(result, r.ordered)
	return result
}

// List returns the ids of all registered providers in declaration order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.ordered))
	for _, p := range r.ordered {
		ids = append(ids, p.ID())
	}
	return ids
}

// Count returns the number of registered providers
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.ordered)
}

// Rank returns every registered provider exactly once, ordered by
// suitability for the requested language: the static preference table
// first, then providers declaring support for the language, then the
// language-agnostic remainder in declaration order.
func (r *Registry) Rank(language string) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ranked := make([]Provider, 0, len(r.ordered))
	seen := make(map[string]bool, len(r.ordered))

	for _, id := range preferredProviderIDs(language) {
		if p, ok := r.byID[id]; ok && !seen[id] {
			ranked = append(ranked, p)
			seen[id] = true
		}
	}

	for _, p := range r.ordered {
		if !seen[p.ID()] && SupportsLanguageCode(p, language) {
			ranked = append(ranked, p)
			seen[p.ID()] = true
		}
	}

	for _, p := range r.ordered {
		if !seen[p.ID()] {
			ranked = append(ranked, p)
			seen[p.ID()] = true
		}
	}

	return ranked
}

// CheckAll runs a health check on all registered providers concurrently
func (r *Registry) CheckAll(ctx context.Context) {
	providers := r.All()
	var wg sync.WaitGroup

	for _, p := range providers {
		wg.Add(1)
		go func(provider Provider) {
			defer wg.Done()

			r.mu.Lock()
			r.statuses[provider.ID()].Status = "Checking..."
			r.statuses[provider.ID()].LastCheck = time.Now()
			r.mu.Unlock()

			checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			err := provider.HealthCheck(checkCtx)

			r.mu.Lock()
			defer r.mu.Unlock()
			status := r.statuses[provider.ID()]
			status.LastCheck = time.Now()
			if err != nil {
				status.Healthy = false
				status.Status = fmt.Sprintf("Offline: %v", err)
			} else {
				status.Healthy = true
				status.Status = "Online"
			}
		}(p)
	}

	wg.Wait()
}

// Statuses returns the health status of all providers in declaration order
func (r *Registry) Statuses() []*ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]*ProviderStatus, 0, len(r.ordered))
	for _, p := range r.ordered {
		statuses = append(statuses, r.statuses[p.ID()])
	}
	return statuses
}
