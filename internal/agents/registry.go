package agents

import (
	"sort"
	"sync"

	"github.com/ajitpratap0/ctrflow/pkg/config"
	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/ajitpratap0/ctrflow/pkg/json"
)

// Factory creates an agent with default parameters.
type Factory func(deps Deps) (Agent, error)

// Registry manages agent kinds and their factories
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register registers an agent factory under kind
func (r *Registry) Register(kind string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "agent kind %s already registered", kind)
	}
	r.factories[kind] = factory
	return nil
}

// New creates an agent of kind with default parameters
func (r *Registry) New(kind string, deps Deps) (Agent, error) {
	r.mu.RLock()
	factory, exists := r.factories[kind]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "agent kind %s not found", kind)
	}

	agent, err := factory(deps)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "failed to create agent %s", kind)
	}
	return agent, nil
}

// Build creates an agent from a spec: the kind's defaults, overridden by
// the spec's params, then validated.
func (r *Registry) Build(spec config.AgentSpec, deps Deps) (Agent, error) {
	agent, err := r.New(spec.Kind, deps)
	if err != nil {
		return nil, err
	}

	if len(spec.Params) > 0 {
		data, err := json.Marshal(spec.Params)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "invalid params for agent %s", spec.Kind)
		}
		if err := json.Unmarshal(data, agent); err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "invalid params for agent %s", spec.Kind)
		}
	}

	if err := agent.Validate(); err != nil {
		return nil, err
	}
	return agent, nil
}

// Kinds returns the registered kinds in sorted order
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Register registers an agent factory in the global registry
func Register(kind string, factory Factory) error {
	return globalRegistry.Register(kind, factory)
}

// New creates an agent from the global registry
func New(kind string, deps Deps) (Agent, error) {
	return globalRegistry.New(kind, deps)
}

// Build creates an agent from a spec using the global registry
func Build(spec config.AgentSpec, deps Deps) (Agent, error) {
	return globalRegistry.Build(spec, deps)
}

// Kinds lists the kinds of the global registry
func Kinds() []string {
	return globalRegistry.Kinds()
}

func mustRegister(kind string, factory Factory) {
	if err := Register(kind, factory); err != nil {
		panic(err)
	}
}
