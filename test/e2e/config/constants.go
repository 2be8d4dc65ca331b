// Package config provides configuration constants for e2e tests.
package config

import "time"

// Default connection URLs.
const (
	DefaultNATSURL    = "nats://localhost:4222"
	DefaultMockLLMURL = "http://localhost:8089"
)

// Default timeouts.
const (
	DefaultStageTimeout = 30 * time.Second
	DefaultPlanTimeout  = 90 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
)

// Names of the buckets and the job stream a running planforge instance
// uses with its default configuration. Scenarios read and write the same
// state the service does.
const (
	ProjectBucket  = "PLANFORGE_PROJECTS"
	PlanBucket     = "PLANFORGE_PLANS"
	ArtifactBucket = "PLANFORGE_ARTIFACTS"

	JobStream  = "PLANFORGE_JOBS"
	JobSubject = "planforge.jobs.plan"
	JobDurable = "plan-worker"
)

// E2E test identifiers.
const (
	E2EUserEmail = "e2e-runner@planforge.dev"
)

// Config holds the e2e test configuration.
type Config struct {
	NATSURL      string        `json:"nats_url"`
	MockLLMURL   string        `json:"mock_llm_url"`
	StageTimeout time.Duration `json:"stage_timeout"`
	PlanTimeout  time.Duration `json:"plan_timeout"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		NATSURL:      DefaultNATSURL,
		MockLLMURL:   DefaultMockLLMURL,
		StageTimeout: DefaultStageTimeout,
		PlanTimeout:  DefaultPlanTimeout,
	}
}
