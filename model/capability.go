// Package model resolves generation-provider identifiers to concrete
// backend endpoints and owns the per-capability token budgets. Projects
// carry loose identifiers ("claude", "openai:gpt-4o-mini"); the registry
// turns them into something the transport layer can call, falling back to a
// default endpoint rather than failing on identifiers it does not know.
package model

// Capability names a generation call site. Budgets are keyed by capability
// because expected output length differs materially between enhancing a
// parsed document and writing a full architectural plan.
type Capability string

const (
	// CapabilityEnhance restructures parsed document text into a
	// canonical requirements document.
	CapabilityEnhance Capability = "enhance"

	// CapabilityConvert turns raw uploaded content directly into a
	// canonical requirements document.
	CapabilityConvert Capability = "convert"

	// CapabilityPlan generates the full architectural plan.
	CapabilityPlan Capability = "plan"
)

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityEnhance, CapabilityConvert, CapabilityPlan:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}
