// Package config provides configuration loading and management for
// Planforge.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/planforge/planforge/model"
)

// Config represents the complete Planforge configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	NATS     NATSConfig     `yaml:"nats"`
	Storage  StorageConfig  `yaml:"storage"`
	Queue    QueueConfig    `yaml:"queue"`
	LLM      LLMConfig      `yaml:"llm"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Intake   IntakeConfig   `yaml:"intake"`
	Importer ImporterConfig `yaml:"importer"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Worker   WorkerConfig   `yaml:"worker"`
	Ops      OpsConfig      `yaml:"ops"`
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	// Embedded runs an in-process JetStream server; false connects to URL.
	Embedded bool `yaml:"embedded"`

	// URL is the external NATS server URL.
	URL string `yaml:"url"`

	// StoreDir is where the embedded server keeps its stream data.
	StoreDir string `yaml:"store_dir"`
}

// StorageConfig names the KV and object buckets.
type StorageConfig struct {
	ProjectBucket  string `yaml:"project_bucket"`
	PlanBucket     string `yaml:"plan_bucket"`
	ArtifactBucket string `yaml:"artifact_bucket"`
	UploadBucket   string `yaml:"upload_bucket"`
}

// QueueConfig configures the plan-generation work queue.
type QueueConfig struct {
	// Stream is the work-queue stream name.
	Stream string `yaml:"stream"`

	// Subject is the subject plan jobs are published on.
	Subject string `yaml:"subject"`

	// Durable is the worker's durable consumer name.
	Durable string `yaml:"durable"`

	// MaxDeliver is the delivery ceiling per job.
	MaxDeliver int `yaml:"max_deliver"`

	// AckWait is how long a delivery may stay unacknowledged, as a
	// duration string (e.g. "60s").
	AckWait string `yaml:"ack_wait"`
}

// GetAckWait returns the ack wait as a duration.
func (c *QueueConfig) GetAckWait() time.Duration {
	if c.AckWait == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(c.AckWait)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// LLMConfig configures the generation client.
type LLMConfig struct {
	// DefaultProvider is the endpoint used when a project names none.
	DefaultProvider string `yaml:"default_provider"`

	// RecordArtifacts controls whether generation calls are recorded.
	RecordArtifacts bool `yaml:"record_artifacts"`

	// Endpoints maps provider identifiers to backends.
	Endpoints map[string]model.Endpoint `yaml:"endpoints"`

	// Budgets maps capability names (enhance, convert, plan) to token
	// budgets.
	Budgets map[string]int `yaml:"budgets"`
}

// Registry builds the provider registry from this configuration.
func (c *LLMConfig) Registry() *model.Registry {
	budgets := make(map[model.Capability]int, len(c.Budgets))
	for name, budget := range c.Budgets {
		budgets[model.Capability(name)] = budget
	}
	return model.NewRegistry(c.Endpoints, budgets, c.DefaultProvider)
}

// IngestConfig bounds document parsing.
type IngestConfig struct {
	// MaxDocBytes is the size ceiling for legacy binary documents.
	MaxDocBytes int64 `yaml:"max_doc_bytes"`

	// MinDocChars is the minimum usable text a best-effort extraction
	// must yield.
	MinDocChars int `yaml:"min_doc_chars"`
}

// IntakeConfig configures the drop-directory watcher.
type IntakeConfig struct {
	// Enabled controls whether the intake watcher runs.
	Enabled bool `yaml:"enabled"`

	// Dir is the intake drop directory.
	Dir string `yaml:"dir"`

	// Debounce is how long to wait for more changes before processing,
	// as a duration string (e.g. "500ms").
	Debounce string `yaml:"debounce"`

	// Include and Exclude are doublestar globs matched against paths
	// relative to Dir.
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// GetDebounce returns the debounce delay as a duration.
func (c *IntakeConfig) GetDebounce() time.Duration {
	if c.Debounce == "" {
		return 500 * time.Millisecond
	}
	d, err := time.ParseDuration(c.Debounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// ImporterConfig configures the web-page importer.
type ImporterConfig struct {
	// Timeout bounds a whole page fetch, as a duration string.
	Timeout string `yaml:"timeout"`

	// MaxContentBytes caps the fetched body.
	MaxContentBytes int64 `yaml:"max_content_bytes"`

	// UserAgent identifies the importer to remote sites.
	UserAgent string `yaml:"user_agent"`
}

// GetTimeout returns the fetch timeout as a duration.
func (c *ImporterConfig) GetTimeout() time.Duration {
	if c.Timeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// WorkflowConfig tunes the project state machine.
type WorkflowConfig struct {
	// DeploymentEnvs is the deployment-environment allow-list.
	DeploymentEnvs []string `yaml:"deployment_envs"`
}

// WorkerConfig configures the plan-generation worker.
type WorkerConfig struct {
	// Enabled controls whether this process consumes plan jobs.
	Enabled bool `yaml:"enabled"`

	// Concurrency is the number of consuming goroutines.
	Concurrency int `yaml:"concurrency"`
}

// OpsConfig configures the operational HTTP listener.
type OpsConfig struct {
	// Listen is the address for /healthz and /metrics.
	Listen string `yaml:"listen"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		NATS: NATSConfig{
			Embedded: true,
			StoreDir: "./data",
		},
		Storage: StorageConfig{
			ProjectBucket:  "PLANFORGE_PROJECTS",
			PlanBucket:     "PLANFORGE_PLANS",
			ArtifactBucket: "PLANFORGE_ARTIFACTS",
			UploadBucket:   "PLANFORGE_UPLOADS",
		},
		Queue: QueueConfig{
			Stream:     "PLANFORGE_JOBS",
			Subject:    "planforge.jobs.plan",
			Durable:    "plan-worker",
			MaxDeliver: 3,
			AckWait:    "60s",
		},
		LLM: LLMConfig{
			DefaultProvider: "claude",
			RecordArtifacts: true,
			Endpoints: map[string]model.Endpoint{
				"claude": {
					Provider:  "anthropic",
					Model:     "claude-sonnet-4-5",
					MaxTokens: 4096,
				},
				"openai": {
					Provider:  "openai",
					Model:     "gpt-4o",
					MaxTokens: 4096,
				},
				"ollama": {
					Provider:  "ollama",
					URL:       "http://localhost:11434/v1",
					Model:     "qwen2.5-coder:14b",
					MaxTokens: 4096,
				},
			},
			Budgets: map[string]int{
				"enhance": 4096,
				"convert": 4096,
				"plan":    16384,
			},
		},
		Ingest: IngestConfig{
			MaxDocBytes: 10 * 1024 * 1024,
			MinDocChars: 50,
		},
		Intake: IntakeConfig{
			Enabled:  false,
			Dir:      "./intake",
			Debounce: "500ms",
		},
		Importer: ImporterConfig{
			Timeout:         "30s",
			MaxContentBytes: 5 * 1024 * 1024,
			UserAgent:       "planforge/1.0 (+https://github.com/planforge/planforge)",
		},
		Workflow: WorkflowConfig{
			DeploymentEnvs: []string{"aws"},
		},
		Worker: WorkerConfig{
			Enabled:     true,
			Concurrency: 2,
		},
		Ops: OpsConfig{
			Listen: ":8080",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}

	if !c.NATS.Embedded && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats.embedded is false")
	}

	if c.Storage.ProjectBucket == "" || c.Storage.PlanBucket == "" ||
		c.Storage.ArtifactBucket == "" || c.Storage.UploadBucket == "" {
		return fmt.Errorf("storage buckets must all be named")
	}

	if c.Queue.Stream == "" {
		return fmt.Errorf("queue.stream is required")
	}
	if c.Queue.Subject == "" {
		return fmt.Errorf("queue.subject is required")
	}
	if c.Queue.Durable == "" {
		return fmt.Errorf("queue.durable is required")
	}
	if c.Queue.MaxDeliver < 1 {
		return fmt.Errorf("queue.max_deliver must be at least 1")
	}
	if c.Queue.AckWait != "" {
		if _, err := time.ParseDuration(c.Queue.AckWait); err != nil {
			return fmt.Errorf("invalid queue.ack_wait format: %w", err)
		}
	}

	if c.LLM.DefaultProvider == "" {
		return fmt.Errorf("llm.default_provider is required")
	}
	if len(c.LLM.Endpoints) == 0 {
		return fmt.Errorf("llm.endpoints must configure at least one provider")
	}
	for id, ep := range c.LLM.Endpoints {
		if ep.Provider == "" {
			return fmt.Errorf("llm.endpoints.%s: provider is required", id)
		}
		if ep.Model == "" {
			return fmt.Errorf("llm.endpoints.%s: model is required", id)
		}
	}
	for name, budget := range c.LLM.Budgets {
		if budget < 0 {
			return fmt.Errorf("llm.budgets.%s must not be negative", name)
		}
	}

	if c.Ingest.MaxDocBytes <= 0 {
		return fmt.Errorf("ingest.max_doc_bytes must be positive")
	}
	if c.Ingest.MinDocChars <= 0 {
		return fmt.Errorf("ingest.min_doc_chars must be positive")
	}

	if c.Intake.Enabled && c.Intake.Dir == "" {
		return fmt.Errorf("intake.dir is required when intake is enabled")
	}
	if c.Intake.Debounce != "" {
		if _, err := time.ParseDuration(c.Intake.Debounce); err != nil {
			return fmt.Errorf("invalid intake.debounce format: %w", err)
		}
	}

	if c.Importer.Timeout != "" {
		if _, err := time.ParseDuration(c.Importer.Timeout); err != nil {
			return fmt.Errorf("invalid importer.timeout format: %w", err)
		}
	}
	if c.Importer.MaxContentBytes <= 0 {
		return fmt.Errorf("importer.max_content_bytes must be positive")
	}

	if c.Worker.Enabled && c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency must be at least 1")
	}

	if c.Ops.Listen == "" {
		return fmt.Errorf("ops.listen is required")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file. Keys absent from the
// file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}
