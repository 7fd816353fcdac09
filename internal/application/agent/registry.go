package agent

import (
	"fmt"
	"sort"
	"sync"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/shared"
)

// Registry maps agent slugs and action types to their implementations.
// Everything is registered once at boot; duplicate registration is a
// configuration error the caller must treat as fatal, never a silent
// overwrite.
type Registry struct {
	mu      sync.RWMutex
	agents  map[string]agentdomain.Agent
	actions map[string]agentdomain.ActionHandler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		agents:  make(map[string]agentdomain.Agent),
		actions: make(map[string]agentdomain.ActionHandler),
	}
}

// RegisterAgent registers an agent implementation under its slug
func (r *Registry) RegisterAgent(impl agentdomain.Agent) error {
	if impl == nil {
		return fmt.Errorf("%w: agent cannot be nil", shared.ErrInvalidInput)
	}
	slug := impl.Slug()
	if slug == "" {
		return fmt.Errorf("%w: agent slug cannot be empty", shared.ErrInvalidInput)
	}
	if !impl.Type().IsValid() {
		return fmt.Errorf("%w: agent '%s' has unknown type %q", shared.ErrInvalidInput, slug, impl.Type())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[slug]; exists {
		return fmt.Errorf("%w: agent '%s' already registered", shared.ErrAlreadyExists, slug)
	}
	r.agents[slug] = impl
	return nil
}

// RegisterAction registers an action handler under its type
func (r *Registry) RegisterAction(impl agentdomain.ActionHandler) error {
	if impl == nil {
		return fmt.Errorf("%w: action handler cannot be nil", shared.ErrInvalidInput)
	}
	actionType := impl.Type()
	if actionType == "" {
		return fmt.Errorf("%w: action type cannot be empty", shared.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[actionType]; exists {
		return fmt.Errorf("%w: action '%s' already registered", shared.ErrAlreadyExists, actionType)
	}
	r.actions[actionType] = impl
	return nil
}

// Agent resolves an agent by slug
func (r *Registry) Agent(slug string) (agentdomain.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	impl, exists := r.agents[slug]
	if !exists {
		return nil, fmt.Errorf("%w: agent '%s'", agentdomain.ErrAgentNotFound, slug)
	}
	return impl, nil
}

// Action resolves an action handler by type
func (r *Registry) Action(actionType string) (agentdomain.ActionHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	impl, exists := r.actions[actionType]
	if !exists {
		return nil, fmt.Errorf("%w: action type '%s'", agentdomain.ErrActionNotFound, actionType)
	}
	return impl, nil
}

// ListAgents produces descriptors for settings UIs, sorted by slug.
// The registry never renders anything itself.
func (r *Registry) ListAgents() []agentdomain.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]agentdomain.Descriptor, 0, len(r.agents))
	for _, impl := range r.agents {
		descriptors = append(descriptors, agentdomain.Descriptor{
			Slug:             impl.Slug(),
			Name:             impl.Name(),
			Type:             impl.Type(),
			DefaultConfig:    impl.DefaultConfig(),
			ConfigSchema:     impl.ConfigSchema(),
			SubscribedEvents: impl.SubscribedEvents(),
		})
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Slug < descriptors[j].Slug })
	return descriptors
}

// ActionTypes returns all registered action types, sorted
func (r *Registry) ActionTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.actions))
	for t := range r.actions {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
