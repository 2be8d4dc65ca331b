package scenarios

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/planforge/planforge/test/e2e/client"
	"github.com/planforge/planforge/test/e2e/config"
	"github.com/planforge/planforge/workflow"
)

// brdFixture is the requirements document every lifecycle run starts from.
const brdFixture = `Business Requirements: Meal Kit Ordering

Customers browse weekly menus, assemble a box of meal kits, and check out
with a saved payment method. Subscriptions renew weekly with a cutoff for
menu changes 72 hours before delivery. The kitchen team needs a consolidated
ingredient forecast per delivery window, and the support team needs order
lookup with full delivery history.`

// LifecycleScenario drives one project from creation to a generated plan
// through the live worker.
type LifecycleScenario struct {
	name        string
	description string
	config      *config.Config
	client      *client.Client
	mock        *client.MockLLMClient

	projectID string
}

// NewLifecycleScenario creates a new lifecycle scenario.
func NewLifecycleScenario(cfg *config.Config) *LifecycleScenario {
	return &LifecycleScenario{
		name:        "lifecycle",
		description: "Drives create → elicitation → tech stack → queued → complete against the running worker",
		config:      cfg,
	}
}

// Name returns the scenario name.
func (s *LifecycleScenario) Name() string {
	return s.name
}

// Description returns the scenario description.
func (s *LifecycleScenario) Description() string {
	return s.description
}

// Setup connects to the shared NATS state.
func (s *LifecycleScenario) Setup(ctx context.Context) error {
	c, err := client.New(ctx, s.config)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	s.client = c
	s.mock = client.NewMockLLMClient(s.config.MockLLMURL)
	return nil
}

// Execute runs the lifecycle scenario.
func (s *LifecycleScenario) Execute(ctx context.Context) (*Result, error) {
	result := NewResult(s.name)
	defer result.Complete()

	stages := []stage{
		{name: "create-project", fn: s.stageCreateProject},
		{name: "save-requirements", fn: s.stageSaveRequirements},
		{name: "run-elicitation", fn: s.stageRunElicitation},
		{name: "submit-tech-stack", fn: s.stageSubmitTechStack},
		{name: "await-plan", timeout: s.config.PlanTimeout, fn: s.stageAwaitPlan},
		{name: "verify-plan", fn: s.stageVerifyPlan},
	}

	result.Success = runStages(ctx, result, s.config.StageTimeout, stages)
	return result, nil
}

// Teardown releases the NATS connection. Created projects are left behind
// on purpose: they are the run's audit trail.
func (s *LifecycleScenario) Teardown(ctx context.Context) error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

func (s *LifecycleScenario) stageCreateProject(ctx context.Context, result *Result) error {
	name := fmt.Sprintf("E2E Meal Kit %d", time.Now().UnixNano())
	project, err := s.client.Machine.CreateProject(ctx, name, config.E2EUserEmail)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	if project.Status != workflow.StatusInitial {
		return fmt.Errorf("new project status: %s", project.Status)
	}

	s.projectID = project.ID
	result.SetDetail("project_id", project.ID)
	return nil
}

func (s *LifecycleScenario) stageSaveRequirements(ctx context.Context, result *Result) error {
	brd := brdFixture
	project, err := s.client.Machine.SaveIntakeDraft(ctx, s.projectID, workflow.IntakeDraft{BRDContent: &brd})
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}

	// Draft saves never advance the workflow.
	if project.Status != workflow.StatusInitial {
		return fmt.Errorf("draft save changed status to %s", project.Status)
	}
	return nil
}

func (s *LifecycleScenario) stageRunElicitation(ctx context.Context, result *Result) error {
	project, err := s.client.Machine.BeginElicitation(ctx, s.projectID)
	if err != nil {
		return fmt.Errorf("begin elicitation: %w", err)
	}
	if project.Status != workflow.StatusElicitation {
		return fmt.Errorf("status after begin: %s", project.Status)
	}

	answers := map[string]string{
		"business_goals":      "Grow weekly subscriptions while keeping kitchen waste low",
		"expected_users":      "Roughly five thousand active subscribers",
		"key_integrations":    "Stripe for payments, a courier API for delivery slots",
		"performance_targets": "Menu pages under 300ms at the 95th percentile",
	}
	project, err = s.client.Machine.SubmitElicitation(ctx, s.projectID, answers)
	if err != nil {
		return fmt.Errorf("submit elicitation: %w", err)
	}
	if project.Status != workflow.StatusTechStackInput {
		return fmt.Errorf("status after answers: %s", project.Status)
	}

	result.SetMetric("answers_submitted", len(answers))
	return nil
}

func (s *LifecycleScenario) stageSubmitTechStack(ctx context.Context, result *Result) error {
	project, err := s.client.Machine.SubmitTechStack(ctx, s.projectID, workflow.TechStackConfig{
		PrimaryLanguage: "Go",
		WebFramework:    "chi",
		DatabaseSystem:  "PostgreSQL",
		DeploymentEnv:   "aws",
	})
	if err != nil {
		return fmt.Errorf("submit tech stack: %w", err)
	}

	if project.Status != workflow.StatusQueued {
		return fmt.Errorf("status after tech stack: %s", project.Status)
	}
	return nil
}

func (s *LifecycleScenario) stageAwaitPlan(ctx context.Context, result *Result) error {
	project, err := s.client.WaitForStatus(ctx, s.projectID, workflow.StatusComplete, s.config.PlanTimeout)
	if err != nil {
		return err
	}
	if project.PlanID == "" {
		return fmt.Errorf("completed project has no plan ID")
	}

	result.SetDetail("plan_id", project.PlanID)
	return nil
}

func (s *LifecycleScenario) stageVerifyPlan(ctx context.Context, result *Result) error {
	project, err := s.client.Machine.GetProject(ctx, s.projectID)
	if err != nil {
		return fmt.Errorf("reload project: %w", err)
	}

	plan, err := s.client.Plans.Get(ctx, project.PlanID)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}

	if plan.ProjectID != s.projectID {
		return fmt.Errorf("plan belongs to %q, want %q", plan.ProjectID, s.projectID)
	}
	if len(strings.TrimSpace(plan.Content)) < 100 {
		return fmt.Errorf("plan content too short: %d chars", len(plan.Content))
	}

	result.SetDetail("plan_chars", len(plan.Content))
	result.SetDetail("plan_fallback", plan.Fallback)
	if plan.Fallback {
		result.AddWarning("plan came from the fallback template; check the generation endpoint")
	}

	// When the shared mock generator is in play, its counters confirm the
	// worker actually called out.
	if s.mock.Healthy(ctx) {
		stats, err := s.mock.GetStats(ctx)
		if err == nil {
			result.SetMetric("mock_llm_total_calls", stats.TotalCalls)
		}
	}
	return nil
}
