// Package client provides test clients for e2e scenarios.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/planforge/planforge/queue"
	"github.com/planforge/planforge/storage"
	"github.com/planforge/planforge/test/e2e/config"
	"github.com/planforge/planforge/workflow"
)

// Client drives a running planforge instance through its shared JetStream
// state: it writes projects with the same machine the service uses and
// waits for the service's worker to act on them.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream

	Projects *storage.ProjectStore
	Plans    *storage.PlanStore
	Machine  *workflow.Machine
}

// New connects to NATS and binds the planforge buckets and job stream.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("planforge-e2e"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("get JetStream context: %w", err)
	}

	projects, err := storage.NewProjectStore(ctx, js, config.ProjectBucket)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind project bucket: %w", err)
	}

	plans, err := storage.NewPlanStore(ctx, js, config.PlanBucket)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind plan bucket: %w", err)
	}

	jobs, err := queue.New(ctx, js, queue.Config{
		Stream:  config.JobStream,
		Subject: config.JobSubject,
		Durable: config.JobDurable,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind job stream: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	machine := workflow.NewMachine(projects, jobs, workflow.MachineConfig{Logger: logger})

	return &Client{
		conn:     conn,
		js:       js,
		Projects: projects,
		Plans:    plans,
		Machine:  machine,
	}, nil
}

// Close releases the NATS connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// WaitForStatus polls the project until it reaches want. Reaching a
// terminal status other than want fails immediately rather than burning
// the rest of the timeout.
func (c *Client) WaitForStatus(ctx context.Context, projectID string, want workflow.Status, timeout time.Duration) (*workflow.Project, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(config.DefaultPollInterval)
	defer ticker.Stop()

	for {
		project, err := c.Machine.GetProject(waitCtx, projectID)
		if err != nil {
			return nil, fmt.Errorf("get project: %w", err)
		}
		if project.Status == want {
			return project, nil
		}
		if project.Status.IsTerminal() {
			return project, fmt.Errorf("project reached %s while waiting for %s (error detail: %q)",
				project.Status, want, project.ErrorDetail)
		}

		select {
		case <-waitCtx.Done():
			return project, fmt.Errorf("timed out in %s waiting for %s", project.Status, want)
		case <-ticker.C:
		}
	}
}
