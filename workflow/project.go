package workflow

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingMode selects how uploaded document content reaches the BRD.
type ProcessingMode string

const (
	// ModeParseOnly stores the parsed text as-is; no generation call.
	ModeParseOnly ProcessingMode = "parse_only"
	// ModeLLMParsed parses the upload, then restructures the text through
	// the generation client; falls back to the parsed text on failure.
	ModeLLMParsed ProcessingMode = "llm_parsed"
	// ModeLLMRaw sends the raw upload bytes to the generation client and
	// uses its output directly; failures surface to the caller.
	ModeLLMRaw ProcessingMode = "llm_raw"
)

// IsValid returns true if the mode is a known processing mode.
func (m ProcessingMode) IsValid() bool {
	switch m {
	case ModeParseOnly, ModeLLMParsed, ModeLLMRaw:
		return true
	default:
		return false
	}
}

// Project is the root aggregate of the planning workflow. It is mutated
// only through Machine operations; every write is a revision-checked update
// against the project bucket.
type Project struct {
	// ID uniquely identifies the project.
	ID string `json:"id"`

	// Name is the human-readable project name.
	Name string `json:"name"`

	// UserEmail identifies the requesting user.
	UserEmail string `json:"user_email,omitempty"`

	// Status is the current workflow state.
	Status Status `json:"status"`

	// BRDContent is the normalized requirements text. Empty until
	// ingestion or a draft save provides it.
	BRDContent string `json:"brd_content,omitempty"`

	// ProcessingMode selects the ingestion behavior for uploads.
	ProcessingMode ProcessingMode `json:"processing_mode"`

	// GenerationProvider is the provider identifier used for all
	// generation calls on this project. Unknown identifiers resolve to
	// the configured default.
	GenerationProvider string `json:"generation_provider,omitempty"`

	// ElicitationData maps catalog question IDs to answers. Rendering
	// order comes from the catalog, never from map iteration.
	ElicitationData map[string]string `json:"elicitation_data,omitempty"`

	// TechStackConfig holds the chosen implementation technologies.
	TechStackConfig TechStackConfig `json:"tech_stack_config"`

	// PlanID references the generated plan after a successful cycle.
	PlanID string `json:"plan_id,omitempty"`

	// ErrorDetail describes the terminal failure when Status is error.
	// Cleared on rewind.
	ErrorDetail string `json:"error_detail,omitempty"`

	// CreatedAt is when the project was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the project was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProject creates a project in the initial state with default settings.
func NewProject(name, userEmail, defaultProvider string) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:                 uuid.New().String(),
		Name:               name,
		UserEmail:          userEmail,
		Status:             StatusInitial,
		ProcessingMode:     ModeParseOnly,
		GenerationProvider: defaultProvider,
		ElicitationData:    make(map[string]string),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// IntakeDraft carries in-progress intake input. Nil fields are left
// unchanged, so partial saves from the UI never clobber other fields.
type IntakeDraft struct {
	BRDContent         *string
	ProcessingMode     *ProcessingMode
	GenerationProvider *string
}

// apply copies the set fields onto the project.
func (d IntakeDraft) apply(p *Project) {
	if d.BRDContent != nil {
		p.BRDContent = *d.BRDContent
	}
	if d.ProcessingMode != nil {
		p.ProcessingMode = *d.ProcessingMode
	}
	if d.GenerationProvider != nil {
		p.GenerationProvider = *d.GenerationProvider
	}
}

// Drafts bundles whatever in-progress input the caller wants persisted as
// part of a rewind, so navigating backward never loses user input.
type Drafts struct {
	Intake      *IntakeDraft
	Elicitation map[string]string
	TechStack   *TechStackConfig
}
