package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ProjectStore persists projects with optimistic concurrency. Get returns
// the revision to pass back to Update; Update returns an error matching
// ErrConflict when the revision no longer matches.
type ProjectStore interface {
	Create(ctx context.Context, project *Project) error
	Get(ctx context.Context, id string) (*Project, uint64, error)
	Update(ctx context.Context, project *Project, revision uint64) error
}

// Enqueuer submits a plan generation job for a project.
type Enqueuer interface {
	Enqueue(ctx context.Context, projectID string) error
}

// MachineConfig carries the machine's policy knobs. Zero values fall back
// to the package defaults.
type MachineConfig struct {
	// Catalog is the elicitation question set. Zero means DefaultCatalog.
	Catalog Catalog

	// DeploymentEnvs is the deployment-environment allow-list for the
	// queue guard. Empty means DefaultDeploymentEnvs.
	DeploymentEnvs []string

	// DefaultProvider is assigned to new projects.
	DefaultProvider string

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Machine owns every status write. Callers outside the core invoke only
// these named operations, never raw field writes; each operation is one
// revision-checked update so concurrent callers cannot interleave a guard
// check with a stale write.
type Machine struct {
	projects        ProjectStore
	jobs            Enqueuer
	catalog         Catalog
	deploymentEnvs  []string
	defaultProvider string
	logger          *slog.Logger
}

// NewMachine creates the state machine over the given store and job queue.
func NewMachine(projects ProjectStore, jobs Enqueuer, cfg MachineConfig) *Machine {
	catalog := cfg.Catalog
	if len(catalog.Questions) == 0 {
		catalog = DefaultCatalog()
	}

	envs := cfg.DeploymentEnvs
	if len(envs) == 0 {
		envs = DefaultDeploymentEnvs
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Machine{
		projects:        projects,
		jobs:            jobs,
		catalog:         catalog,
		deploymentEnvs:  envs,
		defaultProvider: cfg.DefaultProvider,
		logger:          logger,
	}
}

// Catalog returns the machine's elicitation question set.
func (m *Machine) Catalog() Catalog {
	return m.catalog
}

// CreateProject creates a project in the initial state.
func (m *Machine) CreateProject(ctx context.Context, name, userEmail string) (*Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "name", Message: "project name is required"}
	}

	project := NewProject(name, userEmail, m.defaultProvider)
	if err := m.projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	m.logger.Info("Project created", "project_id", project.ID, "name", project.Name)
	return project, nil
}

// GetProject loads a project by ID.
func (m *Machine) GetProject(ctx context.Context, id string) (*Project, error) {
	project, _, err := m.projects.Get(ctx, id)
	return project, err
}

// BeginElicitation moves initial → elicitation. Requires requirements text.
func (m *Machine) BeginElicitation(ctx context.Context, id string) (*Project, error) {
	return m.transition(ctx, id, StatusElicitation, func(p *Project) error {
		if strings.TrimSpace(p.BRDContent) == "" {
			return &ValidationError{Field: "brd_content", Message: "requirements text is required before elicitation"}
		}
		return nil
	}, nil)
}

// SubmitElicitation persists answers and moves elicitation →
// tech_stack_input. Partial answers are allowed; keys outside the catalog
// are dropped with a warning.
func (m *Machine) SubmitElicitation(ctx context.Context, id string, answers map[string]string) (*Project, error) {
	kept, dropped := m.catalog.FilterAnswers(answers)
	if len(dropped) > 0 {
		m.logger.Warn("Dropping unknown elicitation keys",
			"project_id", id,
			"keys", dropped,
			"catalog_version", m.catalog.Version)
	}

	return m.transition(ctx, id, StatusTechStackInput, nil, func(p *Project) {
		if p.ElicitationData == nil {
			p.ElicitationData = make(map[string]string, len(kept))
		}
		for id, answer := range kept {
			p.ElicitationData[id] = answer
		}
	})
}

// SubmitTechStack validates the config, enqueues the plan generation job,
// and moves tech_stack_input → queued.
//
// The job is published before the status write: a job for a project that
// never reached queued is a no-op at the worker, while a queued project
// without a job would be stuck with no recovery path.
func (m *Machine) SubmitTechStack(ctx context.Context, id string, cfg TechStackConfig) (*Project, error) {
	project, _, err := m.projects.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !project.Status.CanTransitionTo(StatusQueued) {
		return nil, &InvalidTransitionError{From: project.Status, To: StatusQueued}
	}

	if err := cfg.Validate(m.deploymentEnvs); err != nil {
		return nil, err
	}

	if err := m.jobs.Enqueue(ctx, id); err != nil {
		return nil, fmt.Errorf("enqueue plan job: %w", err)
	}

	return m.transition(ctx, id, StatusQueued, nil, func(p *Project) {
		p.TechStackConfig = cfg
	})
}

// CompleteWithPlan links a generated plan and moves queued → complete.
// Worker only.
func (m *Machine) CompleteWithPlan(ctx context.Context, id, planID string) (*Project, error) {
	return m.transition(ctx, id, StatusComplete, nil, func(p *Project) {
		p.PlanID = planID
		p.ErrorDetail = ""
	})
}

// MarkFailed records the failure cause and moves queued → error. Worker
// only, after the retry budget is exhausted.
func (m *Machine) MarkFailed(ctx context.Context, id, detail string) (*Project, error) {
	return m.transition(ctx, id, StatusError, nil, func(p *Project) {
		p.ErrorDetail = detail
	})
}

// GoBack rewinds to an earlier step, persisting whatever draft input the
// caller supplies before the status write so navigation never loses user
// input. Forward edges are refused; a rewind can never skip a forward
// guard.
func (m *Machine) GoBack(ctx context.Context, id string, target Status, drafts *Drafts) (*Project, error) {
	if !target.IsValid() {
		return nil, &ValidationError{Field: "target", Message: fmt.Sprintf("unknown status %q", target)}
	}

	return m.transition(ctx, id, target, func(p *Project) error {
		if !isRewind(p.Status, target) {
			return &InvalidTransitionError{From: p.Status, To: target}
		}
		return nil
	}, func(p *Project) {
		m.applyDrafts(p, drafts)
		if p.Status == StatusError {
			// Leaving the failed state starts a fresh cycle.
			p.ErrorDetail = ""
		}
	})
}

// isRewind reports whether from → to is one of the permitted backward
// pairs.
func isRewind(from, to Status) bool {
	switch from {
	case StatusElicitation:
		return to == StatusInitial
	case StatusTechStackInput:
		return to == StatusElicitation
	case StatusComplete, StatusError:
		return to == StatusTechStackInput || to == StatusElicitation
	default:
		return false
	}
}

// SaveIntakeDraft persists in-progress intake fields without touching
// status. Callable from any state; idempotent.
func (m *Machine) SaveIntakeDraft(ctx context.Context, id string, draft IntakeDraft) (*Project, error) {
	if draft.ProcessingMode != nil && !draft.ProcessingMode.IsValid() {
		return nil, &ValidationError{
			Field:   "processing_mode",
			Message: fmt.Sprintf("unknown processing mode %q", *draft.ProcessingMode),
		}
	}

	return m.apply(ctx, id, func(p *Project) error {
		draft.apply(p)
		return nil
	})
}

// SaveTechStackDraft persists the tech-stack config without validation and
// without touching status. Validation re-runs at SubmitTechStack, so a
// draft can never bypass the queue guard.
func (m *Machine) SaveTechStackDraft(ctx context.Context, id string, cfg TechStackConfig) (*Project, error) {
	return m.apply(ctx, id, func(p *Project) error {
		p.TechStackConfig = cfg
		return nil
	})
}

// applyDrafts copies caller-supplied draft data onto the project.
func (m *Machine) applyDrafts(p *Project, drafts *Drafts) {
	if drafts == nil {
		return
	}
	if drafts.Intake != nil {
		drafts.Intake.apply(p)
	}
	if len(drafts.Elicitation) > 0 {
		kept, dropped := m.catalog.FilterAnswers(drafts.Elicitation)
		if len(dropped) > 0 {
			m.logger.Warn("Dropping unknown elicitation keys",
				"project_id", p.ID,
				"keys", dropped)
		}
		if p.ElicitationData == nil {
			p.ElicitationData = make(map[string]string, len(kept))
		}
		for id, answer := range kept {
			p.ElicitationData[id] = answer
		}
	}
	if drafts.TechStack != nil {
		p.TechStackConfig = *drafts.TechStack
	}
}

// transition applies a guarded status change. The guard and mutation run
// against the freshly loaded project inside the revision-checked update, so
// the guard can never be satisfied by stale state.
func (m *Machine) transition(ctx context.Context, id string, to Status, guard func(*Project) error, mutate func(*Project)) (*Project, error) {
	var from Status

	project, err := m.apply(ctx, id, func(p *Project) error {
		if !p.Status.CanTransitionTo(to) {
			return &InvalidTransitionError{From: p.Status, To: to}
		}
		if guard != nil {
			if err := guard(p); err != nil {
				return err
			}
		}
		if mutate != nil {
			mutate(p)
		}
		from = p.Status
		p.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Project status changed",
		"project_id", id,
		"from", from,
		"to", to)
	return project, nil
}

// apply loads the project, runs fn against it, and writes it back with the
// loaded revision. On a revision conflict it re-reads and re-applies
// exactly once; a guard inside fn that fails against the fresh state
// returns its typed error, the same outcome as losing the race before the
// guard ran.
func (m *Machine) apply(ctx context.Context, id string, fn func(*Project) error) (*Project, error) {
	for attempt := 0; ; attempt++ {
		project, revision, err := m.projects.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := fn(project); err != nil {
			return nil, err
		}
		project.UpdatedAt = time.Now().UTC()

		err = m.projects.Update(ctx, project, revision)
		if err == nil {
			return project, nil
		}
		if !errors.Is(err, ErrConflict) || attempt > 0 {
			return nil, err
		}

		m.logger.Debug("Concurrent update, retrying",
			"project_id", id,
			"revision", revision)
	}
}
