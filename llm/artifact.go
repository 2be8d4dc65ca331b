package llm

import (
	"context"
	"time"
)

// Artifact kinds recorded by the client.
const (
	ArtifactTypeGeneration = "generation"
)

// Artifact is the audit record of one generation call: what was asked, what
// came back (or what failed), and which backend handled it. Artifacts are
// append-only; nothing in the core mutates or deletes them.
type Artifact struct {
	// ID uniquely identifies the artifact.
	ID string `json:"id"`

	// ProjectID scopes the artifact to a project.
	ProjectID string `json:"project_id"`

	// Type is the artifact kind (currently always "generation").
	Type string `json:"type"`

	// Category is the capability that made the call (enhance, convert,
	// plan).
	Category string `json:"category"`

	// Title is a human-readable label for the call.
	Title string `json:"title"`

	// Prompt is the rendered system and user content sent out.
	Prompt string `json:"prompt"`

	// Content is the response text, or empty when the call failed.
	Content string `json:"content,omitempty"`

	// Error holds the failure message when the call failed.
	Error string `json:"error,omitempty"`

	// Provider and Model identify the backend that served the call.
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// CreatedAt is when the record was written.
	CreatedAt time.Time `json:"created_at"`
}

// ArtifactStore persists generation artifacts. Recording is an audit trail,
// not a functional dependency: the client logs and swallows store failures
// so they can never fail the primary call.
type ArtifactStore interface {
	Record(ctx context.Context, artifact *Artifact) error
}
