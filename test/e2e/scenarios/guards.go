package scenarios

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/planforge/planforge/test/e2e/client"
	"github.com/planforge/planforge/test/e2e/config"
	"github.com/planforge/planforge/workflow"
)

// GuardsScenario verifies the machine refuses out-of-order and invalid
// input against live state, without involving the worker.
type GuardsScenario struct {
	name        string
	description string
	config      *config.Config
	client      *client.Client

	projectID string
}

// NewGuardsScenario creates a new guards scenario.
func NewGuardsScenario(cfg *config.Config) *GuardsScenario {
	return &GuardsScenario{
		name:        "guards",
		description: "Verifies transition guards and validation against the shared project store",
		config:      cfg,
	}
}

// Name returns the scenario name.
func (s *GuardsScenario) Name() string {
	return s.name
}

// Description returns the scenario description.
func (s *GuardsScenario) Description() string {
	return s.description
}

// Setup connects to the shared NATS state and creates the probe project.
func (s *GuardsScenario) Setup(ctx context.Context) error {
	c, err := client.New(ctx, s.config)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	s.client = c

	name := fmt.Sprintf("E2E Guards %d", time.Now().UnixNano())
	project, err := s.client.Machine.CreateProject(ctx, name, config.E2EUserEmail)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	s.projectID = project.ID
	return nil
}

// Execute runs the guards scenario.
func (s *GuardsScenario) Execute(ctx context.Context) (*Result, error) {
	result := NewResult(s.name)
	defer result.Complete()

	stages := []stage{
		{name: "reject-skip-ahead", fn: s.stageRejectSkipAhead},
		{name: "reject-empty-requirements", fn: s.stageRejectEmptyRequirements},
		{name: "reject-forward-goback", fn: s.stageRejectForwardGoBack},
		{name: "reject-bad-environment", fn: s.stageRejectBadEnvironment},
		{name: "draft-save-keeps-status", fn: s.stageDraftSaveKeepsStatus},
	}

	result.Success = runStages(ctx, result, s.config.StageTimeout, stages)
	return result, nil
}

// Teardown releases the NATS connection.
func (s *GuardsScenario) Teardown(ctx context.Context) error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// stageRejectSkipAhead submits a tech stack on a brand-new project, which
// must fail with a typed transition error naming both states.
func (s *GuardsScenario) stageRejectSkipAhead(ctx context.Context, result *Result) error {
	_, err := s.client.Machine.SubmitTechStack(ctx, s.projectID, workflow.TechStackConfig{
		PrimaryLanguage: "Go",
		DatabaseSystem:  "PostgreSQL",
		DeploymentEnv:   "aws",
	})
	if err == nil {
		return fmt.Errorf("tech stack accepted on an initial project")
	}

	var invalid *workflow.InvalidTransitionError
	if !errors.As(err, &invalid) {
		return fmt.Errorf("expected invalid transition error, got: %v", err)
	}
	if invalid.From != workflow.StatusInitial || invalid.To != workflow.StatusQueued {
		return fmt.Errorf("transition error names %s → %s", invalid.From, invalid.To)
	}
	return nil
}

// stageRejectEmptyRequirements starts elicitation without requirements
// text, which the forward guard must refuse.
func (s *GuardsScenario) stageRejectEmptyRequirements(ctx context.Context, result *Result) error {
	_, err := s.client.Machine.BeginElicitation(ctx, s.projectID)
	if err == nil {
		return fmt.Errorf("elicitation started without requirements text")
	}

	var validation *workflow.ValidationError
	if !errors.As(err, &validation) {
		return fmt.Errorf("expected validation error, got: %v", err)
	}
	return nil
}

// stageRejectForwardGoBack uses the rewind operation in the forward
// direction, which is never allowed.
func (s *GuardsScenario) stageRejectForwardGoBack(ctx context.Context, result *Result) error {
	_, err := s.client.Machine.GoBack(ctx, s.projectID, workflow.StatusQueued, nil)
	if err == nil {
		return fmt.Errorf("forward go-back accepted")
	}

	var invalid *workflow.InvalidTransitionError
	if !errors.As(err, &invalid) {
		return fmt.Errorf("expected invalid transition error, got: %v", err)
	}
	return nil
}

// stageRejectBadEnvironment drives to tech stack input and submits an
// unsupported deployment environment.
func (s *GuardsScenario) stageRejectBadEnvironment(ctx context.Context, result *Result) error {
	brd := "An internal asset tracker: equipment check-in and check-out, " +
		"maintenance schedules, and depreciation reports for the finance team."
	if _, err := s.client.Machine.SaveIntakeDraft(ctx, s.projectID, workflow.IntakeDraft{BRDContent: &brd}); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	if _, err := s.client.Machine.BeginElicitation(ctx, s.projectID); err != nil {
		return fmt.Errorf("begin elicitation: %w", err)
	}
	if _, err := s.client.Machine.SubmitElicitation(ctx, s.projectID, map[string]string{
		"business_goals": "Stop losing track of laptops",
	}); err != nil {
		return fmt.Errorf("submit elicitation: %w", err)
	}

	_, err := s.client.Machine.SubmitTechStack(ctx, s.projectID, workflow.TechStackConfig{
		PrimaryLanguage: "Go",
		DatabaseSystem:  "PostgreSQL",
		DeploymentEnv:   "mainframe",
	})
	if err == nil {
		return fmt.Errorf("unsupported deployment environment accepted")
	}

	var validation *workflow.ValidationError
	if !errors.As(err, &validation) {
		return fmt.Errorf("expected validation error, got: %v", err)
	}
	if validation.Field != "deployment_env" {
		return fmt.Errorf("validation error on field %q", validation.Field)
	}

	// The failed submission must not have moved the project.
	project, err := s.client.Machine.GetProject(ctx, s.projectID)
	if err != nil {
		return fmt.Errorf("reload project: %w", err)
	}
	if project.Status != workflow.StatusTechStackInput {
		return fmt.Errorf("status after rejected submission: %s", project.Status)
	}
	return nil
}

// stageDraftSaveKeepsStatus saves a tech stack draft and verifies the
// status and the draft both stick.
func (s *GuardsScenario) stageDraftSaveKeepsStatus(ctx context.Context, result *Result) error {
	draft := workflow.TechStackConfig{PrimaryLanguage: "Go", WebFramework: "fiber"}
	project, err := s.client.Machine.SaveTechStackDraft(ctx, s.projectID, draft)
	if err != nil {
		return fmt.Errorf("save tech stack draft: %w", err)
	}

	if project.Status != workflow.StatusTechStackInput {
		return fmt.Errorf("draft save changed status to %s", project.Status)
	}
	if project.TechStackConfig.WebFramework != "fiber" {
		return fmt.Errorf("draft not persisted: %+v", project.TechStackConfig)
	}
	return nil
}
