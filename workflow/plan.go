package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MinPlanChars is the minimum plan content length. Anything shorter is not
// a usable architectural plan and is rejected at construction.
const MinPlanChars = 100

// Plan is the generated architectural document, the workflow's terminal
// artifact. Immutable once created; regeneration produces a new Plan and
// repoints the project's plan_id.
type Plan struct {
	// ID uniquely identifies the plan.
	ID string `json:"id"`

	// ProjectID is the owning project.
	ProjectID string `json:"project_id"`

	// Content is the plan text.
	Content string `json:"content"`

	// Fallback is true when the plan came from the deterministic
	// template path instead of a generation call.
	Fallback bool `json:"fallback,omitempty"`

	// Provider is the resolved provider that generated the content;
	// empty for fallback plans.
	Provider string `json:"provider,omitempty"`

	// GeneratedAt is when the plan was created.
	GeneratedAt time.Time `json:"generated_at"`
}

// NewPlan creates a plan, enforcing the minimum-length invariant.
func NewPlan(projectID, content, provider string, fallback bool) (*Plan, error) {
	if len(content) < MinPlanChars {
		return nil, fmt.Errorf("plan content too short: %d chars, minimum %d", len(content), MinPlanChars)
	}

	return &Plan{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		Content:     content,
		Fallback:    fallback,
		Provider:    provider,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
