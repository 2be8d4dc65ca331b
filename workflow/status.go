// Package workflow implements the project state machine that carries a
// business requirements document from intake through elicitation and
// tech-stack selection to a generated architectural plan.
package workflow

// Status represents the current state of a project in the workflow.
type Status string

const (
	// StatusInitial indicates the project exists but has no usable
	// requirements text yet.
	StatusInitial Status = "initial"
	// StatusElicitation indicates the BRD is in place and clarifying
	// questions are being answered.
	StatusElicitation Status = "elicitation"
	// StatusTechStackInput indicates elicitation is done and technology
	// choices are being collected.
	StatusTechStackInput Status = "tech_stack_input"
	// StatusQueued indicates a plan generation job has been enqueued.
	StatusQueued Status = "queued"
	// StatusComplete indicates a plan has been generated and linked.
	StatusComplete Status = "complete"
	// StatusError indicates plan generation failed terminally.
	StatusError Status = "error"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is a known workflow status.
func (s Status) IsValid() bool {
	switch s {
	case StatusInitial, StatusElicitation, StatusTechStackInput,
		StatusQueued, StatusComplete, StatusError:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for states that end a generation cycle. Both
// support an explicit rewind to start a new cycle.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// CanTransitionTo returns true if the status can transition to the target
// status. The graph includes both the guarded forward path and the free
// backward ("go back") pairs; forward preconditions are checked by the
// machine operations, not here.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusInitial:
		return target == StatusElicitation
	case StatusElicitation:
		// elicitation → tech_stack_input (forward) or initial (go back)
		return target == StatusTechStackInput || target == StatusInitial
	case StatusTechStackInput:
		// tech_stack_input → queued (forward) or elicitation (go back)
		return target == StatusQueued || target == StatusElicitation
	case StatusQueued:
		// queued → complete or error, worker only
		return target == StatusComplete || target == StatusError
	case StatusComplete, StatusError:
		// rewind to produce a new plan version or revisit answers
		return target == StatusTechStackInput || target == StatusElicitation
	default:
		return false
	}
}
