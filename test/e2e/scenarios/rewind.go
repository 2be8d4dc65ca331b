package scenarios

import (
	"context"
	"fmt"
	"time"

	"github.com/planforge/planforge/test/e2e/client"
	"github.com/planforge/planforge/test/e2e/config"
	"github.com/planforge/planforge/workflow"
)

// RewindScenario completes a plan cycle, rewinds to elicitation with new
// input, and verifies the second cycle produces a fresh plan while the
// first one stays readable.
type RewindScenario struct {
	name        string
	description string
	config      *config.Config
	client      *client.Client

	projectID   string
	firstPlanID string
}

// NewRewindScenario creates a new rewind scenario.
func NewRewindScenario(cfg *config.Config) *RewindScenario {
	return &RewindScenario{
		name:        "rewind",
		description: "Rewinds a completed project and regenerates the plan with revised answers",
		config:      cfg,
	}
}

// Name returns the scenario name.
func (s *RewindScenario) Name() string {
	return s.name
}

// Description returns the scenario description.
func (s *RewindScenario) Description() string {
	return s.description
}

// Setup connects to the shared NATS state.
func (s *RewindScenario) Setup(ctx context.Context) error {
	c, err := client.New(ctx, s.config)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	s.client = c
	return nil
}

// Execute runs the rewind scenario.
func (s *RewindScenario) Execute(ctx context.Context) (*Result, error) {
	result := NewResult(s.name)
	defer result.Complete()

	stages := []stage{
		{name: "first-cycle", fn: s.stageFirstCycle},
		{name: "await-first-plan", timeout: s.config.PlanTimeout, fn: s.stageAwaitFirstPlan},
		{name: "rewind", fn: s.stageRewind},
		{name: "second-cycle", fn: s.stageSecondCycle},
		{name: "await-second-plan", timeout: s.config.PlanTimeout, fn: s.stageAwaitSecondPlan},
	}

	result.Success = runStages(ctx, result, s.config.StageTimeout, stages)
	return result, nil
}

// Teardown releases the NATS connection.
func (s *RewindScenario) Teardown(ctx context.Context) error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

func (s *RewindScenario) stageFirstCycle(ctx context.Context, result *Result) error {
	name := fmt.Sprintf("E2E Rewind %d", time.Now().UnixNano())
	project, err := s.client.Machine.CreateProject(ctx, name, config.E2EUserEmail)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	s.projectID = project.ID
	result.SetDetail("project_id", project.ID)

	brd := "A booking portal for a chain of climbing gyms: class schedules, " +
		"memberships, waivers, and day passes with capacity limits per session."
	if _, err := s.client.Machine.SaveIntakeDraft(ctx, s.projectID, workflow.IntakeDraft{BRDContent: &brd}); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	if _, err := s.client.Machine.BeginElicitation(ctx, s.projectID); err != nil {
		return fmt.Errorf("begin elicitation: %w", err)
	}
	if _, err := s.client.Machine.SubmitElicitation(ctx, s.projectID, map[string]string{
		"business_goals": "Fill off-peak sessions",
		"expected_users": "A few hundred bookings per day",
	}); err != nil {
		return fmt.Errorf("submit elicitation: %w", err)
	}
	if _, err := s.client.Machine.SubmitTechStack(ctx, s.projectID, workflow.TechStackConfig{
		PrimaryLanguage: "Go",
		DatabaseSystem:  "PostgreSQL",
		DeploymentEnv:   "aws",
	}); err != nil {
		return fmt.Errorf("submit tech stack: %w", err)
	}
	return nil
}

func (s *RewindScenario) stageAwaitFirstPlan(ctx context.Context, result *Result) error {
	project, err := s.client.WaitForStatus(ctx, s.projectID, workflow.StatusComplete, s.config.PlanTimeout)
	if err != nil {
		return err
	}
	if project.PlanID == "" {
		return fmt.Errorf("first cycle completed without a plan ID")
	}

	s.firstPlanID = project.PlanID
	result.SetDetail("first_plan_id", project.PlanID)
	return nil
}

func (s *RewindScenario) stageRewind(ctx context.Context, result *Result) error {
	// The rewind carries revised answers as a draft so nothing typed in
	// the UI is lost on navigation.
	project, err := s.client.Machine.GoBack(ctx, s.projectID, workflow.StatusElicitation, &workflow.Drafts{
		Elicitation: map[string]string{
			"business_goals": "Fill off-peak sessions and sell multi-gym passes",
		},
	})
	if err != nil {
		return fmt.Errorf("go back: %w", err)
	}

	if project.Status != workflow.StatusElicitation {
		return fmt.Errorf("status after rewind: %s", project.Status)
	}
	if project.ElicitationData["business_goals"] != "Fill off-peak sessions and sell multi-gym passes" {
		return fmt.Errorf("rewind draft not persisted: %q", project.ElicitationData["business_goals"])
	}
	// The finished plan stays linked until a new cycle replaces it.
	if project.PlanID != s.firstPlanID {
		return fmt.Errorf("rewind changed plan ID to %q", project.PlanID)
	}
	return nil
}

func (s *RewindScenario) stageSecondCycle(ctx context.Context, result *Result) error {
	if _, err := s.client.Machine.SubmitElicitation(ctx, s.projectID, map[string]string{
		"timeline": "Relaunch before the autumn season",
	}); err != nil {
		return fmt.Errorf("resubmit elicitation: %w", err)
	}
	if _, err := s.client.Machine.SubmitTechStack(ctx, s.projectID, workflow.TechStackConfig{
		PrimaryLanguage: "Go",
		WebFramework:    "echo",
		DatabaseSystem:  "PostgreSQL",
		DeploymentEnv:   "aws",
	}); err != nil {
		return fmt.Errorf("resubmit tech stack: %w", err)
	}
	return nil
}

func (s *RewindScenario) stageAwaitSecondPlan(ctx context.Context, result *Result) error {
	project, err := s.client.WaitForStatus(ctx, s.projectID, workflow.StatusComplete, s.config.PlanTimeout)
	if err != nil {
		return err
	}

	if project.PlanID == "" {
		return fmt.Errorf("second cycle completed without a plan ID")
	}
	if project.PlanID == s.firstPlanID {
		return fmt.Errorf("second cycle reused plan %s", s.firstPlanID)
	}
	result.SetDetail("second_plan_id", project.PlanID)

	// Both plan versions must remain readable.
	if _, err := s.client.Plans.Get(ctx, s.firstPlanID); err != nil {
		return fmt.Errorf("first plan no longer readable: %w", err)
	}
	if _, err := s.client.Plans.Get(ctx, project.PlanID); err != nil {
		return fmt.Errorf("second plan not readable: %w", err)
	}
	return nil
}
