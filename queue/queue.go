// Package queue is the durable hand-off between tech-stack submission and
// the plan worker. Jobs ride a JetStream work-queue stream with explicit
// acks, so a crashed worker redelivers rather than loses work; delivery is
// at-least-once and the worker's stale-status guard absorbs duplicates.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/planforge/planforge/workflow"
)

// Defaults for the job stream and its durable consumer.
const (
	DefaultStream     = "PLANFORGE_JOBS"
	DefaultSubject    = "planforge.jobs.plan"
	DefaultDurable    = "plan-worker"
	DefaultMaxDeliver = 3
	DefaultAckWait    = 60 * time.Second
)

// Config holds the stream and consumer settings. Zero fields fall back to
// the package defaults.
type Config struct {
	Stream     string
	Subject    string
	Durable    string
	MaxDeliver int
	AckWait    time.Duration
}

func (c *Config) applyDefaults() {
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.Subject == "" {
		c.Subject = DefaultSubject
	}
	if c.Durable == "" {
		c.Durable = DefaultDurable
	}
	if c.MaxDeliver <= 0 {
		c.MaxDeliver = DefaultMaxDeliver
	}
	if c.AckWait <= 0 {
		c.AckWait = DefaultAckWait
	}
}

// Job is the queue payload: just the project to plan. Everything else is
// read fresh from the project store at processing time, so a stale payload
// cannot overwrite newer project data.
type Job struct {
	ProjectID string `json:"project_id"`
}

// Queue publishes and consumes plan-generation jobs.
type Queue struct {
	js  jetstream.JetStream
	cfg Config
}

var _ workflow.Enqueuer = (*Queue)(nil)

// New ensures the job stream exists and returns a queue bound to it.
func New(ctx context.Context, js jetstream.JetStream, cfg Config) (*Queue, error) {
	cfg.applyDefaults()

	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "Planforge plan generation jobs",
		Subjects:    []string{cfg.Subject},
		Retention:   jetstream.WorkQueuePolicy,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream %s: %w", cfg.Stream, err)
	}

	return &Queue{js: js, cfg: cfg}, nil
}

// Enqueue publishes a job for the given project.
func (q *Queue) Enqueue(ctx context.Context, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("project ID is required")
	}

	data, err := json.Marshal(Job{ProjectID: projectID})
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if _, err := q.js.Publish(ctx, q.cfg.Subject, data); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}

	return nil
}

// Consumer creates or updates the durable pull consumer the worker fetches
// from. Redelivery stops after MaxDeliver attempts; the worker parks the
// project in error before acking the final delivery.
func (q *Queue) Consumer(ctx context.Context) (jetstream.Consumer, error) {
	stream, err := q.js.Stream(ctx, q.cfg.Stream)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", q.cfg.Stream, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       q.cfg.Durable,
		FilterSubject: q.cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       q.cfg.AckWait, // Allow time for LLM
		MaxDeliver:    q.cfg.MaxDeliver,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	return consumer, nil
}

// MaxDeliver reports the configured delivery ceiling.
func (q *Queue) MaxDeliver() int {
	return q.cfg.MaxDeliver
}
