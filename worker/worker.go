// Package worker consumes plan-generation jobs and drives queued projects
// to a terminal status. It is the sole writer of the queued → complete and
// queued → error edges: duplicates and jobs for projects that moved on are
// detected against live status and dropped, so at-least-once delivery never
// double-completes a project.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/planforge/planforge/llm"
	"github.com/planforge/planforge/model"
	"github.com/planforge/planforge/queue"
	"github.com/planforge/planforge/workflow"
	"github.com/planforge/planforge/workflow/prompts"
)

// DefaultConcurrency is the number of goroutines fetching from the shared
// durable consumer.
const DefaultConcurrency = 2

// fallbackExcerptChars caps how much of the requirements document the
// fallback template reproduces.
const fallbackExcerptChars = 500

// Machine is the slice of the state machine the worker drives.
type Machine interface {
	GetProject(ctx context.Context, id string) (*workflow.Project, error)
	CompleteWithPlan(ctx context.Context, id, planID string) (*workflow.Project, error)
	MarkFailed(ctx context.Context, id, detail string) (*workflow.Project, error)
}

// PlanStore persists generated plans.
type PlanStore interface {
	Put(ctx context.Context, p *workflow.Plan) error
}

// Generator is the slice of the generation client the worker calls.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Config holds worker settings. Zero fields fall back to defaults.
type Config struct {
	// Concurrency is how many goroutines fetch jobs concurrently.
	Concurrency int

	// MaxDeliver is the queue's delivery ceiling; the delivery that
	// reaches it is the last chance before the project is parked in
	// error.
	MaxDeliver int

	// Catalog orders the elicitation answers in the generation context.
	Catalog workflow.Catalog

	Logger *slog.Logger
}

// Worker processes plan jobs from the durable consumer.
type Worker struct {
	machine Machine
	plans   PlanStore
	client  Generator
	cfg     Config
	logger  *slog.Logger
}

// New creates a worker. The consumer to fetch from is passed to Run so the
// worker itself stays free of queue setup.
func New(machine Machine, plans PlanStore, client Generator, cfg Config) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = queue.DefaultMaxDeliver
	}
	if len(cfg.Catalog.Questions) == 0 {
		cfg.Catalog = workflow.DefaultCatalog()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		machine: machine,
		plans:   plans,
		client:  client,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run fetches and handles jobs until ctx is cancelled. It blocks.
func (w *Worker) Run(ctx context.Context, consumer jetstream.Consumer) {
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consumeLoop(ctx, consumer)
		}()
	}
	wg.Wait()
}

// consumeLoop continuously fetches messages from the consumer.
func (w *Worker) consumeLoop(ctx context.Context, consumer jetstream.Consumer) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Debug("Fetch timeout or error", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			w.Handle(ctx, msg)
		}

		if msgs.Error() != nil && msgs.Error() != context.DeadlineExceeded {
			w.logger.Warn("Message fetch error", "error", msgs.Error())
		}
	}
}

// Handle processes a single plan job. Every path ends in exactly one Ack
// or Nak: Ack when the project reached a terminal status or the job is
// stale, Nak when the failure deserves another delivery.
func (w *Worker) Handle(ctx context.Context, msg jetstream.Msg) {
	start := time.Now()
	defer func() {
		jobSeconds.Observe(time.Since(start).Seconds())
	}()

	// Check for context cancellation before expensive operations
	if ctx.Err() != nil {
		w.nak(msg)
		jobsTotal.WithLabelValues(outcomeRetried).Inc()
		return
	}

	var job queue.Job
	if err := json.Unmarshal(msg.Data(), &job); err != nil || job.ProjectID == "" {
		// A malformed job can never succeed; drop it.
		w.logger.Error("Discarding malformed job", "error", err, "data", string(msg.Data()))
		w.ack(msg)
		jobsTotal.WithLabelValues(outcomeFailed).Inc()
		return
	}

	outcome := w.handleJob(ctx, msg, job.ProjectID)
	jobsTotal.WithLabelValues(outcome).Inc()
}

func (w *Worker) handleJob(ctx context.Context, msg jetstream.Msg, projectID string) (outcome string) {
	logger := w.logger.With("project_id", projectID)

	// A panic below must not kill the consume loop; convert it to the
	// hard-failure path instead.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered panic in plan job", "panic", r)
			outcome = w.failOrRetry(ctx, msg, projectID, fmt.Sprintf("internal error: %v", r), logger)
		}
	}()

	project, err := w.machine.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, workflow.ErrProjectNotFound) {
			logger.Warn("Job references unknown project")
			w.ack(msg)
			return outcomeStale
		}
		return w.failOrRetry(ctx, msg, projectID, fmt.Sprintf("load project: %v", err), logger)
	}

	if project.Status != workflow.StatusQueued {
		// A duplicate delivery already finished this project, or the user
		// rewound it before the job ran. Either way the job is stale.
		logger.Info("Skipping job for project no longer queued", "status", project.Status)
		w.ack(msg)
		return outcomeStale
	}

	resp, genErr := w.client.Generate(ctx, llm.Request{
		Capability:    model.CapabilityPlan,
		Provider:      project.GenerationProvider,
		System:        prompts.Plan(),
		User:          w.buildContext(project),
		ProjectID:     project.ID,
		ArtifactTitle: "Architectural plan for " + project.Name,
	})

	var content, provider string
	var fallback bool
	if genErr != nil {
		if ctx.Err() != nil {
			// Shutting down mid-call; hand the job back untouched.
			w.nak(msg)
			return outcomeRetried
		}
		// Soft failure: the project still completes, with a deterministic
		// template plan instead of a generated one. No delivery attempt
		// is spent on provider trouble.
		logger.Warn("Generation failed, completing with fallback plan", "error", genErr)
		content = w.fallbackPlan(project)
		fallback = true
	} else {
		content = resp.Content
		provider = resp.Provider
	}

	plan, err := workflow.NewPlan(project.ID, content, provider, fallback)
	if err != nil {
		return w.failOrRetry(ctx, msg, projectID, err.Error(), logger)
	}

	if err := w.plans.Put(ctx, plan); err != nil {
		return w.failOrRetry(ctx, msg, projectID, fmt.Sprintf("store plan: %v", err), logger)
	}

	if _, err := w.machine.CompleteWithPlan(ctx, project.ID, plan.ID); err != nil {
		var invalid *workflow.InvalidTransitionError
		if errors.As(err, &invalid) {
			// Lost the terminal race; the other writer's state wins.
			logger.Info("Project changed status during generation", "status", invalid.From)
			w.ack(msg)
			return outcomeStale
		}
		return w.failOrRetry(ctx, msg, projectID, fmt.Sprintf("complete project: %v", err), logger)
	}

	w.ack(msg)
	if fallback {
		logger.Info("Plan generated from fallback template", "plan_id", plan.ID)
		return outcomeFallback
	}
	logger.Info("Plan generated", "plan_id", plan.ID, "provider", provider)
	return outcomeComplete
}

// failOrRetry spends one delivery attempt. Before the ceiling the message
// is redelivered and status stays queued; on the final delivery the project
// is parked in error with the failure detail.
func (w *Worker) failOrRetry(ctx context.Context, msg jetstream.Msg, projectID, detail string, logger *slog.Logger) string {
	meta, err := msg.Metadata()
	if err == nil && int(meta.NumDelivered) < w.cfg.MaxDeliver {
		logger.Warn("Plan job failed, leaving for redelivery",
			"attempt", meta.NumDelivered,
			"max_deliver", w.cfg.MaxDeliver,
			"error", detail)
		w.nak(msg)
		return outcomeRetried
	}

	logger.Error("Plan job failed on final delivery", "error", detail)
	if _, err := w.machine.MarkFailed(ctx, projectID, detail); err != nil {
		var invalid *workflow.InvalidTransitionError
		if errors.As(err, &invalid) {
			logger.Info("Project changed status before failure was recorded", "status", invalid.From)
			w.ack(msg)
			return outcomeStale
		}
		// Redelivery is exhausted either way; all that is lost is the
		// error detail on the project.
		logger.Error("Failed to mark project failed", "error", err)
	}
	w.ack(msg)
	return outcomeFailed
}

// buildContext renders the generation context in a fixed order so reruns
// of the same project produce the same prompt.
func (w *Worker) buildContext(p *workflow.Project) string {
	var b strings.Builder

	b.WriteString("## Business Requirements\n\n")
	b.WriteString(p.BRDContent)

	b.WriteString("\n\n## Elicitation Answers\n\n")
	lines := w.cfg.Catalog.AnsweredLines(p.ElicitationData)
	if len(lines) == 0 {
		b.WriteString("No elicitation data provided.")
	} else {
		b.WriteString(strings.Join(lines, "\n"))
	}

	b.WriteString("\n\n## Technology Stack\n\n")
	b.WriteString(p.TechStackConfig.Render())

	return b.String()
}

// fallbackPlan renders the deterministic template from the same context
// pieces the generation prompt uses.
func (w *Worker) fallbackPlan(p *workflow.Project) string {
	excerpt := p.BRDContent
	if runes := []rune(excerpt); len(runes) > fallbackExcerptChars {
		excerpt = string(runes[:fallbackExcerptChars])
	}

	lines := w.cfg.Catalog.AnsweredLines(p.ElicitationData)
	return prompts.FallbackPlan(excerpt, lines, p.TechStackConfig.Render())
}

func (w *Worker) ack(msg jetstream.Msg) {
	if err := msg.Ack(); err != nil {
		w.logger.Warn("Failed to ACK message", "error", err)
	}
}

func (w *Worker) nak(msg jetstream.Msg) {
	if err := msg.Nak(); err != nil {
		w.logger.Warn("Failed to NAK message", "error", err)
	}
}
