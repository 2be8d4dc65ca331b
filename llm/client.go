// Package llm provides a provider-agnostic generation client with retry
// support. Provider identifiers are resolved through the model registry;
// every call can optionally be recorded as a generation artifact.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/planforge/planforge/model"
)

// maxResponseSize limits the response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Client sends system/user prompt pairs to a configured generation backend
// and returns generated text or a typed error. Safe for concurrent use.
type Client struct {
	registry    *model.Registry
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger

	// artifacts optionally persists generation calls as audit records.
	// If nil, recording is disabled.
	artifacts ArtifactStore
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// Request defines a generation request.
type Request struct {
	// Capability names the call site and selects the token budget.
	Capability model.Capability

	// Provider is the project's generation-provider identifier; the
	// registry resolves it, falling back to the default when unknown.
	Provider string

	// System is the system prompt.
	System string

	// User is the user content.
	User string

	// Temperature controls randomness. nil uses the provider default,
	// 0 is deterministic.
	Temperature *float64

	// MaxTokens overrides the capability budget when > 0.
	MaxTokens int

	// ProjectID, when set together with a configured artifact store,
	// causes the call to be recorded as a generation artifact.
	ProjectID string

	// ArtifactTitle labels the recorded artifact; defaults to the
	// capability name.
	ArtifactTitle string
}

// TokenUsage represents token consumption details for a generation call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the generation result.
type Response struct {
	// RequestID uniquely identifies this call for correlation with its
	// recorded artifact.
	RequestID string

	// Content is the generated text.
	Content string

	// Provider is the resolved provider that served the request.
	Provider string

	// Model is the actual model that served the request.
	Model string

	// Usage contains token consumption metrics when the provider
	// reports them.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithArtifactStore enables artifact recording for calls that carry a
// project id.
func WithArtifactStore(store ArtifactStore) ClientOption {
	return func(client *Client) {
		client.artifacts = store
	}
}

// NewClient creates a generation client backed by the given registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:    registry,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // Long-form generation takes a while
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Generate sends a system/user prompt pair to the resolved backend,
// retrying transient failures, and returns the generated text or a typed
// error (*TransientError after retries are exhausted, *FatalError
// immediately).
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	if !req.Capability.IsValid() {
		return nil, NewFatalError(fmt.Errorf("unknown capability %q", req.Capability))
	}
	if req.User == "" {
		return nil, NewFatalError(fmt.Errorf("user content is required"))
	}

	requestID := uuid.New().String()
	startedAt := time.Now()

	endpoint := c.registry.Resolve(req.Provider)
	if endpoint.Provider == "" {
		return nil, NewFatalError(fmt.Errorf("no endpoints configured"))
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.registry.Budget(req.Capability)
	}

	if !c.registry.IsEndpointAvailable(endpoint.Provider) {
		err := NewTransientError(fmt.Errorf("%w: %s", ErrCircuitOpen, endpoint.Provider))
		requestsTotal.WithLabelValues(endpoint.Provider, req.Capability.String(), outcomeCircuitOpen).Inc()
		c.recordArtifact(ctx, requestID, req, endpoint, "", err)
		return nil, err
	}

	messages := make([]Message, 0, 2)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, Message{Role: "user", Content: req.User})

	resp, err := c.tryWithRetry(ctx, endpoint, messages, req.Temperature, maxTokens)
	requestSeconds.WithLabelValues(endpoint.Provider, req.Capability.String()).
		Observe(time.Since(startedAt).Seconds())

	if err != nil {
		outcome := outcomeTransient
		if IsFatal(err) {
			outcome = outcomeFatal
		}
		requestsTotal.WithLabelValues(endpoint.Provider, req.Capability.String(), outcome).Inc()
		c.recordArtifact(ctx, requestID, req, endpoint, "", err)
		return nil, err
	}

	resp.RequestID = requestID
	resp.Provider = endpoint.Provider
	requestsTotal.WithLabelValues(endpoint.Provider, req.Capability.String(), outcomeSuccess).Inc()
	c.recordArtifact(ctx, requestID, req, endpoint, resp.Content, nil)

	c.logger.Debug("Generation succeeded",
		"request_id", requestID,
		"provider", endpoint.Provider,
		"model", resp.Model,
		"capability", req.Capability,
		"tokens", resp.Usage.TotalTokens,
		"duration", time.Since(startedAt))

	return resp, nil
}

// tryWithRetry attempts a request with retry on transient failures.
func (c *Client) tryWithRetry(ctx context.Context, ep model.Endpoint, messages []Message, temperature *float64, maxTokens int) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, ep, messages, temperature, maxTokens)
		if err == nil {
			c.registry.MarkEndpointSuccess(ep.Provider)
			return resp, nil
		}

		lastErr = err

		// Fatal errors indicate config or request problems, not
		// endpoint health; abort without touching the circuit.
		if IsFatal(err) {
			return nil, err
		}

		if attempt < c.retryConfig.MaxAttempts {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debug("Request failed, retrying",
				"attempt", attempt,
				"max_attempts", c.retryConfig.MaxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, NewTransientError(ctx.Err())
			case <-time.After(backoff):
			}
		}
	}

	c.registry.MarkEndpointFailure(ep.Provider)
	return nil, lastErr
}

// calculateBackoff computes exponential backoff duration with jitter.
// Jitter prevents thundering herd when multiple workers retry together.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	// +/- 25% to desynchronize retries
	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

// doRequest executes a single HTTP request to the generation endpoint.
func (c *Client) doRequest(ctx context.Context, ep model.Endpoint, messages []Message, temperature *float64, maxTokens int) (*Response, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", ep.Provider))
	}

	url := provider.BuildURL(ep.URL)

	body, err := provider.BuildRequestBody(ep.Model, messages, temperature, maxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	c.logger.Debug("Sending generation request",
		"provider", ep.Provider,
		"model", ep.Model,
		"url", url,
		"max_tokens", maxTokens)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are transient
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	resp, err := provider.ParseResponse(respBody, ep.Model)
	if err != nil {
		return nil, NewFatalError(err)
	}
	return resp, nil
}

// recordArtifact persists the call as a generation artifact when recording
// is configured and the request carries a project id. Store failures are
// logged and swallowed; the audit trail never fails the primary call.
func (c *Client) recordArtifact(ctx context.Context, requestID string, req Request, ep model.Endpoint, content string, callErr error) {
	if c.artifacts == nil || req.ProjectID == "" {
		return
	}

	title := req.ArtifactTitle
	if title == "" {
		title = req.Capability.String()
	}

	artifact := &Artifact{
		ID:        requestID,
		ProjectID: req.ProjectID,
		Type:      ArtifactTypeGeneration,
		Category:  req.Capability.String(),
		Title:     title,
		Prompt:    renderPrompt(req.System, req.User),
		Content:   content,
		Provider:  ep.Provider,
		Model:     ep.Model,
		CreatedAt: time.Now(),
	}
	if callErr != nil {
		artifact.Error = callErr.Error()
	}

	if err := c.artifacts.Record(ctx, artifact); err != nil {
		c.logger.Warn("Failed to record generation artifact",
			"request_id", requestID,
			"project_id", req.ProjectID,
			"category", artifact.Category,
			"error", err)
	}
}

// renderPrompt flattens a system/user pair into the stored prompt text.
func renderPrompt(system, user string) string {
	if system == "" {
		return user
	}
	return "[system]\n" + system + "\n\n[user]\n" + user
}

// classifyHTTPError determines if an HTTP error is transient or fatal.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := fmt.Errorf("generation API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		// Rate limiting is transient
		return NewTransientError(err)
	case statusCode >= 500:
		// Server errors are transient
		return NewTransientError(err)
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden:
		// Auth errors are fatal
		return NewFatalError(err)
	case statusCode == http.StatusBadRequest:
		// Bad requests are fatal
		return NewFatalError(err)
	default:
		return NewFatalError(err)
	}
}
