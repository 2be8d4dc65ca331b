package model

import (
	"strings"
	"sync"
)

// Default per-capability token budgets. Plan generation produces a
// long-form document and gets roughly four times the enhancement budget.
const (
	DefaultEnhanceBudget = 4096
	DefaultConvertBudget = 4096
	DefaultPlanBudget    = 16384
)

// Endpoint describes a callable generation backend.
type Endpoint struct {
	// Provider is the transport implementation name (anthropic, openai,
	// ollama).
	Provider string `json:"provider" yaml:"provider"`

	// URL is the API base URL; empty means the transport's default.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Model is the model identifier sent to the provider.
	Model string `json:"model" yaml:"model"`

	// MaxTokens is the default response budget for this endpoint; a
	// capability budget or request override takes precedence.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// Registry maps provider identifiers to endpoints and capabilities to token
// budgets. Resolution never fails: unknown identifiers resolve to the
// configured default, preferring availability over strict validation.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
	budgets   map[Capability]int
	defaultID string
	health    *healthState
}

// NewRegistry creates a registry from explicit configuration. A defaultID
// not present in endpoints falls back to any configured endpoint, so a
// registry with at least one endpoint always resolves.
func NewRegistry(endpoints map[string]Endpoint, budgets map[Capability]int, defaultID string) *Registry {
	eps := make(map[string]Endpoint, len(endpoints))
	for id, ep := range endpoints {
		eps[id] = ep
	}

	b := map[Capability]int{
		CapabilityEnhance: DefaultEnhanceBudget,
		CapabilityConvert: DefaultConvertBudget,
		CapabilityPlan:    DefaultPlanBudget,
	}
	for cap, budget := range budgets {
		if budget > 0 {
			b[cap] = budget
		}
	}

	return &Registry{
		endpoints: eps,
		budgets:   b,
		defaultID: defaultID,
	}
}

// NewDefaultRegistry creates a registry with the stock endpoints. Used when
// no configuration is provided.
func NewDefaultRegistry() *Registry {
	return NewRegistry(map[string]Endpoint{
		"claude": {
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-5",
			MaxTokens: 4096,
		},
		"openai": {
			Provider:  "openai",
			Model:     "gpt-4o",
			MaxTokens: 4096,
		},
		"ollama": {
			Provider:  "ollama",
			URL:       "http://localhost:11434/v1",
			Model:     "qwen2.5-coder:14b",
			MaxTokens: 4096,
		},
	}, nil, "claude")
}

// Resolve maps a provider identifier to an endpoint.
//
// Identifiers of the form "transport:model" pass through: the part before
// the colon must name a known transport (the Provider of some configured
// endpoint) and the part after overrides the model; URL is borrowed from
// the first configured endpoint on that transport. Everything else either
// matches a configured identifier or resolves to the default.
func (r *Registry) Resolve(providerID string) Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if transport, modelName, ok := strings.Cut(providerID, ":"); ok && transport != "" && modelName != "" {
		if base, ok := r.endpointForTransport(transport); ok {
			base.Model = modelName
			return base
		}
	}

	if ep, ok := r.endpoints[providerID]; ok {
		return ep
	}

	return r.defaultEndpoint()
}

// endpointForTransport returns a configured endpoint whose Provider matches
// the transport name. Callers must hold r.mu.
func (r *Registry) endpointForTransport(transport string) (Endpoint, bool) {
	for _, ep := range r.endpoints {
		if ep.Provider == transport {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// defaultEndpoint returns the default, or any endpoint when the default id
// is misconfigured. Callers must hold r.mu.
func (r *Registry) defaultEndpoint() Endpoint {
	if ep, ok := r.endpoints[r.defaultID]; ok {
		return ep
	}
	for _, ep := range r.endpoints {
		return ep
	}
	return Endpoint{}
}

// DefaultID returns the configured default provider identifier.
func (r *Registry) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}

// Budget returns the token budget for a capability.
func (r *Registry) Budget(cap Capability) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if budget, ok := r.budgets[cap]; ok {
		return budget
	}
	return DefaultEnhanceBudget
}

// SetEndpoint updates or adds an endpoint configuration.
func (r *Registry) SetEndpoint(id string, ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[id] = ep
}

// SetDefault sets the default provider identifier.
func (r *Registry) SetDefault(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultID = id
}

// ListEndpoints returns all configured provider identifiers.
func (r *Registry) ListEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.endpoints))
	for id := range r.endpoints {
		ids = append(ids, id)
	}
	return ids
}
