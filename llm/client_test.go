package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/planforge/planforge/llm"
	_ "github.com/planforge/planforge/llm/providers" // Register providers
	"github.com/planforge/planforge/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRegistry wires a single OpenAI-compatible endpoint at the given URL.
func testRegistry(url string) *model.Registry {
	return model.NewRegistry(map[string]model.Endpoint{
		"test-model": {
			Provider: "ollama",
			URL:      url,
			Model:    "test-model",
		},
	}, nil, "test-model")
}

// fastRetry keeps test runtime low.
func fastRetry() llm.ClientOption {
	return llm.WithRetryConfig(llm.RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       10 * time.Millisecond,
		BackoffMultiplier: 1.5,
		MaxBackoff:        100 * time.Millisecond,
	})
}

// writeChatResponse writes a minimal OpenAI-format success response.
func writeChatResponse(w http.ResponseWriter, content string) {
	resp := map[string]any{
		"id":      "chatcmpl-123",
		"object":  "chat.completion",
		"created": 1677652288,
		"model":   "test-model",
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]string{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     10,
			"completion_tokens": 8,
			"total_tokens":      18,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func TestClient_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "You restructure documents.", body.Messages[0].Content)
		assert.Equal(t, "user", body.Messages[1].Role)

		writeChatResponse(w, "# Business Requirements\n\nRestructured.")
	}))
	defer server.Close()

	client := llm.NewClient(testRegistry(server.URL))

	resp, err := client.Generate(context.Background(), llm.Request{
		Capability: model.CapabilityEnhance,
		System:     "You restructure documents.",
		User:       "raw document text",
	})

	require.NoError(t, err)
	assert.Equal(t, "# Business Requirements\n\nRestructured.", resp.Content)
	assert.Equal(t, "ollama", resp.Provider)
	assert.Equal(t, "test-model", resp.Model)
	assert.Equal(t, 18, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.NotEmpty(t, resp.RequestID)
}

func TestClient_Generate_RetryOnTransientError(t *testing.T) {
	var attempts atomic.Int32

	// Server that fails first 2 times, then succeeds
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Service temporarily unavailable"))
			return
		}
		writeChatResponse(w, "Success after retries")
	}))
	defer server.Close()

	client := llm.NewClient(testRegistry(server.URL), fastRetry())

	resp, err := client.Generate(context.Background(), llm.Request{
		Capability: model.CapabilityEnhance,
		User:       "Test",
	})

	require.NoError(t, err)
	assert.Equal(t, "Success after retries", resp.Content)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_Generate_NoRetryOnFatalError(t *testing.T) {
	var attempts atomic.Int32

	// Server that returns 401 Unauthorized (fatal)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Invalid API key"))
	}))
	defer server.Close()

	client := llm.NewClient(testRegistry(server.URL), fastRetry())

	_, err := client.Generate(context.Background(), llm.Request{
		Capability: model.CapabilityEnhance,
		User:       "Test",
	})

	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
	assert.Equal(t, int32(1), attempts.Load()) // Only one attempt
}

func TestClient_Generate_RateLimitRetry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("Rate limited"))
			return
		}
		writeChatResponse(w, "Success")
	}))
	defer server.Close()

	client := llm.NewClient(testRegistry(server.URL), fastRetry())

	resp, err := client.Generate(context.Background(), llm.Request{
		Capability: model.CapabilityEnhance,
		User:       "Test",
	})

	require.NoError(t, err)
	assert.Equal(t, "Success", resp.Content)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_Generate_UnknownProviderUsesDefault(t *testing.T) {
	var served atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.Add(1)
		writeChatResponse(w, "From default endpoint")
	}))
	defer server.Close()

	client := llm.NewClient(testRegistry(server.URL))

	resp, err := client.Generate(context.Background(), llm.Request{
		Capability: model.CapabilityEnhance,
		Provider:   "no-such-provider",
		User:       "Test",
	})

	require.NoError(t, err)
	assert.Equal(t, "From default endpoint", resp.Content)
	assert.Equal(t, int32(1), served.Load())
}

func TestClient_Generate_ModelPassthrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3.2:3b", body.Model)
		writeChatResponse(w, "From override model")
	}))
	defer server.Close()

	client := llm.NewClient(testRegistry(server.URL))

	// "transport:model" keeps the configured URL and swaps the model.
	resp, err := client.Generate(context.Background(), llm.Request{
		Capability: model.CapabilityEnhance,
		Provider:   "ollama:llama3.2:3b",
		User:       "Test",
	})

	require.NoError(t, err)
	assert.Equal(t, "From override model", resp.Content)
}

func TestClient_Generate_PlanBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			MaxTokens int `json:"max_tokens"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, model.DefaultPlanBudget, body.MaxTokens)
		writeChatResponse(w, "plan text")
	}))
	defer server.Close()

	client := llm.NewClient(testRegistry(server.URL))

	_, err := client.Generate(context.Background(), llm.Request{
		Capability: model.CapabilityPlan,
		User:       "Test",
	})
	require.NoError(t, err)
}

func TestClient_Generate_MaxTokensOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			MaxTokens int `json:"max_tokens"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 512, body.MaxTokens)
		writeChatResponse(w, "short")
	}))
	defer server.Close()

	client := llm.NewClient(testRegistry(server.URL))

	_, err := client.Generate(context.Background(), llm.Request{
		Capability: model.CapabilityEnhance,
		User:       "Test",
		MaxTokens:  512,
	})
	require.NoError(t, err)
}

// captureStore records artifacts in memory for assertions.
type captureStore struct {
	artifacts []*llm.Artifact
	err       error
}

func (s *captureStore) Record(_ context.Context, artifact *llm.Artifact) error {
	if s.err != nil {
		return s.err
	}
	s.artifacts = append(s.artifacts, artifact)
	return nil
}

func TestClient_Generate_RecordsArtifact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChatResponse(w, "generated plan")
	}))
	defer server.Close()

	store := &captureStore{}
	client := llm.NewClient(testRegistry(server.URL), llm.WithArtifactStore(store))

	resp, err := client.Generate(context.Background(), llm.Request{
		Capability:    model.CapabilityPlan,
		System:        "You write plans.",
		User:          "context document",
		ProjectID:     "proj-1",
		ArtifactTitle: "Architectural Plan",
	})

	require.NoError(t, err)
	require.Len(t, store.artifacts, 1)

	artifact := store.artifacts[0]
	assert.Equal(t, resp.RequestID, artifact.ID)
	assert.Equal(t, "proj-1", artifact.ProjectID)
	assert.Equal(t, llm.ArtifactTypeGeneration, artifact.Type)
	assert.Equal(t, "plan", artifact.Category)
	assert.Equal(t, "Architectural Plan", artifact.Title)
	assert.Contains(t, artifact.Prompt, "You write plans.")
	assert.Contains(t, artifact.Prompt, "context document")
	assert.Equal(t, "generated plan", artifact.Content)
	assert.Empty(t, artifact.Error)
	assert.Equal(t, "ollama", artifact.Provider)
	assert.Equal(t, "test-model", artifact.Model)
	assert.False(t, artifact.CreatedAt.IsZero())
}

func TestClient_Generate_RecordsFailureArtifact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("model not found"))
	}))
	defer server.Close()

	store := &captureStore{}
	client := llm.NewClient(testRegistry(server.URL), llm.WithArtifactStore(store))

	_, err := client.Generate(context.Background(), llm.Request{
		Capability: model.CapabilityEnhance,
		User:       "Test",
		ProjectID:  "proj-1",
	})

	require.Error(t, err)
	require.Len(t, store.artifacts, 1)
	assert.Empty(t, store.artifacts[0].Content)
	assert.Contains(t, store.artifacts[0].Error, "model not found")
}

func TestClient_Generate_ArtifactStoreFailureIsSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChatResponse(w, "still fine")
	}))
	defer server.Close()

	store := &captureStore{err: errors.New("bucket unavailable")}
	client := llm.NewClient(testRegistry(server.URL), llm.WithArtifactStore(store))

	resp, err := client.Generate(context.Background(), llm.Request{
		Capability: model.CapabilityEnhance,
		User:       "Test",
		ProjectID:  "proj-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "still fine", resp.Content)
}

func TestClient_Generate_NoArtifactWithoutProjectID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChatResponse(w, "ok")
	}))
	defer server.Close()

	store := &captureStore{}
	client := llm.NewClient(testRegistry(server.URL), llm.WithArtifactStore(store))

	_, err := client.Generate(context.Background(), llm.Request{
		Capability: model.CapabilityEnhance,
		User:       "Test",
	})

	require.NoError(t, err)
	assert.Empty(t, store.artifacts)
}

func TestClient_Generate_CircuitOpen(t *testing.T) {
	var served atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.Add(1)
		writeChatResponse(w, "should not be reached")
	}))
	defer server.Close()

	registry := testRegistry(server.URL)
	for i := 0; i < 3; i++ {
		registry.MarkEndpointFailure("ollama")
	}

	client := llm.NewClient(registry)

	_, err := client.Generate(context.Background(), llm.Request{
		Capability: model.CapabilityEnhance,
		User:       "Test",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrCircuitOpen)
	assert.True(t, llm.IsTransient(err))
	assert.Equal(t, int32(0), served.Load())
}

func TestClient_Generate_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Simulate slow response
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := llm.NewClient(testRegistry(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Generate(ctx, llm.Request{
		Capability: model.CapabilityEnhance,
		User:       "Test",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}

func TestClient_Generate_ValidationErrors(t *testing.T) {
	client := llm.NewClient(model.NewDefaultRegistry())

	tests := []struct {
		name    string
		req     llm.Request
		wantErr string
	}{
		{
			name:    "unknown capability",
			req:     llm.Request{Capability: "summarize", User: "hi"},
			wantErr: "unknown capability",
		},
		{
			name:    "empty user content",
			req:     llm.Request{Capability: model.CapabilityPlan},
			wantErr: "user content is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Generate(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, llm.IsFatal(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
