package model

import (
	"testing"
	"time"
)

func TestNewDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	endpoints := r.ListEndpoints()
	if len(endpoints) != 3 {
		t.Errorf("expected 3 endpoints, got %d", len(endpoints))
	}
	if r.DefaultID() != "claude" {
		t.Errorf("DefaultID() = %q, want %q", r.DefaultID(), "claude")
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		name         string
		providerID   string
		wantProvider string
		wantModel    string
	}{
		{"known identifier", "claude", "anthropic", "claude-sonnet-4-5"},
		{"known identifier ollama", "ollama", "ollama", "qwen2.5-coder:14b"},
		{"unknown falls back to default", "bedrock", "anthropic", "claude-sonnet-4-5"},
		{"empty falls back to default", "", "anthropic", "claude-sonnet-4-5"},
		{"transport:model passthrough", "anthropic:claude-3-haiku", "anthropic", "claude-3-haiku"},
		{"passthrough borrows transport url", "ollama:llama3.2", "ollama", "llama3.2"},
		{"colon with unknown transport falls back", "qwen2.5-coder:14b", "anthropic", "claude-sonnet-4-5"},
		{"trailing colon falls back", "anthropic:", "anthropic", "claude-sonnet-4-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := r.Resolve(tt.providerID)
			if ep.Provider != tt.wantProvider {
				t.Errorf("Resolve(%q).Provider = %q, want %q", tt.providerID, ep.Provider, tt.wantProvider)
			}
			if ep.Model != tt.wantModel {
				t.Errorf("Resolve(%q).Model = %q, want %q", tt.providerID, ep.Model, tt.wantModel)
			}
		})
	}
}

func TestRegistryResolvePassthroughURL(t *testing.T) {
	r := NewDefaultRegistry()

	ep := r.Resolve("ollama:llama3.2")
	if ep.URL != "http://localhost:11434/v1" {
		t.Errorf("passthrough URL = %q, want configured ollama URL", ep.URL)
	}
}

func TestRegistryResolveNeverFails(t *testing.T) {
	// Even with a misconfigured default id, resolution returns some
	// configured endpoint rather than a zero value.
	r := NewRegistry(map[string]Endpoint{
		"local": {Provider: "ollama", Model: "llama3.2"},
	}, nil, "does-not-exist")

	ep := r.Resolve("anything")
	if ep.Provider != "ollama" || ep.Model != "llama3.2" {
		t.Errorf("Resolve() = %+v, want the only configured endpoint", ep)
	}
}

func TestRegistryBudgets(t *testing.T) {
	r := NewDefaultRegistry()

	if got := r.Budget(CapabilityEnhance); got != DefaultEnhanceBudget {
		t.Errorf("Budget(enhance) = %d, want %d", got, DefaultEnhanceBudget)
	}
	if got := r.Budget(CapabilityConvert); got != DefaultConvertBudget {
		t.Errorf("Budget(convert) = %d, want %d", got, DefaultConvertBudget)
	}
	if got := r.Budget(CapabilityPlan); got != DefaultPlanBudget {
		t.Errorf("Budget(plan) = %d, want %d", got, DefaultPlanBudget)
	}

	// Plan generation budget is roughly 4x the enhancement budget.
	if r.Budget(CapabilityPlan) != 4*r.Budget(CapabilityEnhance) {
		t.Errorf("plan budget %d should be 4x enhance budget %d",
			r.Budget(CapabilityPlan), r.Budget(CapabilityEnhance))
	}
}

func TestRegistryBudgetOverrides(t *testing.T) {
	r := NewRegistry(map[string]Endpoint{
		"claude": {Provider: "anthropic", Model: "claude-sonnet-4-5"},
	}, map[Capability]int{CapabilityPlan: 32768}, "claude")

	if got := r.Budget(CapabilityPlan); got != 32768 {
		t.Errorf("Budget(plan) = %d, want override 32768", got)
	}
	if got := r.Budget(CapabilityEnhance); got != DefaultEnhanceBudget {
		t.Errorf("Budget(enhance) = %d, want default %d", got, DefaultEnhanceBudget)
	}
}

func TestCapabilityIsValid(t *testing.T) {
	for _, cap := range []Capability{CapabilityEnhance, CapabilityConvert, CapabilityPlan} {
		if !cap.IsValid() {
			t.Errorf("%q should be valid", cap)
		}
	}
	if Capability("planning").IsValid() {
		t.Error("unknown capability should be invalid")
	}
}

func TestEndpointHealthCircuit(t *testing.T) {
	r := NewDefaultRegistry()
	r.SetHealthConfig(HealthConfig{FailureThreshold: 2, RecoveryTimeout: 50 * time.Millisecond})

	if !r.IsEndpointAvailable("claude") {
		t.Fatal("untracked endpoint should be available")
	}

	r.MarkEndpointFailure("claude")
	if !r.IsEndpointAvailable("claude") {
		t.Error("one failure should not open the circuit")
	}

	r.MarkEndpointFailure("claude")
	if r.IsEndpointAvailable("claude") {
		t.Error("circuit should be open after threshold failures")
	}

	health := r.EndpointHealthFor("claude")
	if health == nil || !health.CircuitOpen || health.FailureCount != 2 {
		t.Errorf("EndpointHealthFor() = %+v, want open circuit with 2 failures", health)
	}

	// Recovery timeout passes: a half-open test request is allowed.
	time.Sleep(60 * time.Millisecond)
	if !r.IsEndpointAvailable("claude") {
		t.Error("endpoint should be half-open after recovery timeout")
	}

	r.MarkEndpointSuccess("claude")
	health = r.EndpointHealthFor("claude")
	if health.CircuitOpen || health.FailureCount != 0 {
		t.Errorf("success should close the circuit, got %+v", health)
	}
}
