package indicator

import (
	"sort"
	"sync"

	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// Factory builds a fresh, unconfigured indicator.
type Factory func() Indicator

// IndicatorRegistry hands out new indicator instances by name.
type IndicatorRegistry interface {
	RegisterIndicator(name IndicatorType, factory Factory) error
	GetIndicator(name IndicatorType) (Indicator, error)
	ListIndicators() []IndicatorType
	RemoveIndicator(name IndicatorType) error
}

// IndicatorRegistryV1 is the default IndicatorRegistry.
type IndicatorRegistryV1 struct {
	factories map[IndicatorType]Factory
	mu        sync.RWMutex
}

// NewIndicatorRegistry creates an empty registry.
func NewIndicatorRegistry() IndicatorRegistry {
	return &IndicatorRegistryV1{
		factories: make(map[IndicatorType]Factory),
	}
}

// NewDefaultIndicatorRegistry creates a registry holding the built-in indicators.
func NewDefaultIndicatorRegistry() IndicatorRegistry {
	registry := NewIndicatorRegistry()
	_ = registry.RegisterIndicator(IndicatorTypeMA, NewMA)

	return registry
}

func (r *IndicatorRegistryV1) RegisterIndicator(name IndicatorType, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.Newf(errors.ErrCodeIndicatorAlreadyExists, "RegisterIndicator: indicator with name %s already registered", name)
	}

	r.factories[name] = factory

	return nil
}

// GetIndicator returns a new instance of the named indicator.
func (r *IndicatorRegistryV1) GetIndicator(name IndicatorType) (Indicator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[name]
	if !exists {
		return nil, errors.Newf(errors.ErrCodeIndicatorNotFound, "GetIndicator: indicator with name %s not found", name)
	}

	return factory(), nil
}

// ListIndicators returns the registered names, sorted.
func (r *IndicatorRegistryV1) ListIndicators() []IndicatorType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]IndicatorType, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	return names
}

func (r *IndicatorRegistryV1) RemoveIndicator(name IndicatorType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; !exists {
		return errors.Newf(errors.ErrCodeIndicatorNotFound, "RemoveIndicator: indicator with name %s not found", name)
	}

	delete(r.factories, name)

	return nil
}
