package brokers

import (
	"sort"
	"sync"

	"stripe-webhook-router/internal/common/errors"
)

type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

func (r *Registry) Register(factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[factory.GetType()] = factory
}

// Create validates config and builds a broker of its type
func (r *Registry) Create(config Config) (Broker, error) {
	r.mu.RLock()
	factory, exists := r.factories[config.GetType()]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.ConfigError("broker type " + config.GetType() + " not registered")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return factory.Create(config)
}

func (r *Registry) GetAvailableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for brokerType := range r.factories {
		types = append(types, brokerType)
	}
	sort.Strings(types)
	return types
}

func (r *Registry) IsRegistered(brokerType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[brokerType]
	return exists
}

// WrongConfig is returned by factories handed another broker's config
func WrongConfig(brokerType string) error {
	return errors.ConfigError("invalid config type for " + brokerType + " broker")
}
