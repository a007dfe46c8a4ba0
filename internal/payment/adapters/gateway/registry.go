package gateway

import (
	"fmt"

	"github.com/ilmiynashr/journal-payments/internal/payment/domain"
)

// Registry maps provider names to their gateway adapters.
type Registry struct {
	adapters map[domain.Provider]domain.GatewayAdapter
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[domain.Provider]domain.GatewayAdapter),
	}
}

func (r *Registry) Register(provider domain.Provider, adapter domain.GatewayAdapter) {
	r.adapters[provider] = adapter
}

func (r *Registry) Get(provider domain.Provider) (domain.GatewayAdapter, error) {
	if a, exists := r.adapters[provider]; exists {
		return a, nil
	}
	return nil, fmt.Errorf("provider %s not configured", provider)
}
