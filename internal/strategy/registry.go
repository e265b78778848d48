package strategy

import (
	"sort"
	"strings"
	"sync"

	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// Factory builds a strategy with default parameters.
type Factory func() Strategy

// Descriptor describes a strategy type. A descriptor without a Factory is a
// declared type that cannot be constructed yet.
type Descriptor struct {
	Type        string  `yaml:"type" json:"type"`
	Label       string  `yaml:"label" json:"label"`
	Description string  `yaml:"description" json:"description"`
	Schema      string  `yaml:"schema,omitempty" json:"schema,omitempty"`
	Factory     Factory `yaml:"-" json:"-"`
}

func (d Descriptor) Registered() bool {
	return d.Factory != nil
}

// Registry maps strategy type keys to descriptors. Build one at startup and
// pass it to whoever needs to construct strategies.
type Registry struct {
	descriptors map[string]Descriptor
	mu          sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]Descriptor),
	}
}

// Register adds a descriptor. Registering a key twice fails, except that a
// declared type may be given a factory later.
func (r *Registry) Register(descriptor Descriptor) error {
	key := strings.TrimSpace(descriptor.Type)
	if key == "" {
		return errors.New(errors.ErrCodeMissingParameter, "strategy type is required")
	}

	descriptor.Type = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.descriptors[key]; ok && existing.Registered() {
		return errors.Newf(errors.ErrCodeStrategyAlreadyRegistered, "strategy type %s already registered", key)
	}

	r.descriptors[key] = descriptor

	return nil
}

// Get returns the descriptor of a known type.
func (r *Registry) Get(key string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptor, ok := r.descriptors[key]
	if !ok {
		return Descriptor{}, errors.Newf(errors.ErrCodeStrategyNotFound, "unknown strategy type %q", key)
	}

	return descriptor, nil
}

// Create builds and configures a new strategy of the given type. Every call
// returns a new instance.
func (r *Registry) Create(key string, config string) (Strategy, error) {
	descriptor, err := r.Get(key)
	if err != nil {
		return nil, err
	}

	if !descriptor.Registered() {
		return nil, errors.Newf(errors.ErrCodeStrategyNotRegistered, "strategy type %q is not implemented", key)
	}

	strategy := descriptor.Factory()
	if err := strategy.Initialize(config); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "invalid parameters for strategy %s", key)
	}

	return strategy, nil
}

// List returns every known descriptor sorted by type.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(r.descriptors))
	for _, descriptor := range r.descriptors {
		descriptors = append(descriptors, descriptor)
	}

	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Type < descriptors[j].Type })

	return descriptors
}

// Registered returns the sorted keys that can be constructed.
func (r *Registry) Registered() []string {
	var keys []string

	for _, descriptor := range r.List() {
		if descriptor.Registered() {
			keys = append(keys, descriptor.Type)
		}
	}

	return keys
}
