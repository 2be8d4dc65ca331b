package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFixtures_BaseOnly(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-planner.md", "# Plan\n\nUse a queue.")
	writeFixture(t, dir, "mock-enhancer.txt", "Cleaned requirements text.")

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	if len(fixtures) != 2 {
		t.Fatalf("expected 2 models, got %d", len(fixtures))
	}

	// Each model should have exactly 1 fixture (the base)
	for model, seq := range fixtures {
		if len(seq) != 1 {
			t.Errorf("model %q: expected 1 fixture, got %d", model, len(seq))
		}
	}
}

func TestLoadFixtures_Sequential(t *testing.T) {
	dir := t.TempDir()

	// Numbered fixtures for the planner (draft then final)
	writeFixture(t, dir, "mock-planner.1.md", "# Draft Plan\n\nRough sketch.")
	writeFixture(t, dir, "mock-planner.2.md", "# Revised Plan\n\nRefined components.")
	// Base fallback
	writeFixture(t, dir, "mock-planner.md", "# Final Plan\n\nRepeating fallback.")

	// Non-sequential model
	writeFixture(t, dir, "mock-enhancer.txt", "Enhanced text.")

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	plannerSeq := fixtures["mock-planner"]
	if len(plannerSeq) != 3 {
		t.Fatalf("mock-planner: expected 3 fixtures, got %d", len(plannerSeq))
	}

	// Verify order: numbered first (sorted), then base
	if !strings.Contains(plannerSeq[0], "Draft") {
		t.Errorf("fixture[0] should be the draft, got: %s", plannerSeq[0])
	}
	if !strings.Contains(plannerSeq[1], "Revised") {
		t.Errorf("fixture[1] should be the revision, got: %s", plannerSeq[1])
	}
	if !strings.Contains(plannerSeq[2], "fallback") {
		t.Errorf("fixture[2] should be the fallback, got: %s", plannerSeq[2])
	}

	enhancerSeq := fixtures["mock-enhancer"]
	if len(enhancerSeq) != 1 {
		t.Fatalf("mock-enhancer: expected 1 fixture, got %d", len(enhancerSeq))
	}
}

func TestLoadFixtures_NumberedOnly(t *testing.T) {
	dir := t.TempDir()

	// Only numbered, no base file
	writeFixture(t, dir, "mock-planner.1.md", "# First")
	writeFixture(t, dir, "mock-planner.2.md", "# Second")

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	seq := fixtures["mock-planner"]
	if len(seq) != 2 {
		t.Fatalf("expected 2 fixtures, got %d", len(seq))
	}
}

func TestLoadFixtures_EmptyDir(t *testing.T) {
	dir := t.TempDir()

	_, err := loadFixtures(dir)
	if err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestLoadFixtures_IgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-planner.md", "# Plan")
	writeFixture(t, dir, "notes.json", `{"ignored":true}`)
	writeFixture(t, dir, "README", "ignored")

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}
	if len(fixtures) != 1 {
		t.Fatalf("expected 1 model, got %d", len(fixtures))
	}
}

func TestSequentialFixtureSelection(t *testing.T) {
	fixtures := map[string][]string{
		"mock-planner": {
			"# Draft Plan",
			"# Final Plan",
		},
		"mock-enhancer": {
			"Enhanced requirements.",
		},
	}

	s := newServer(fixtures)

	// First call to mock-planner → draft
	resp1 := doCompletion(t, s, "mock-planner")
	if !strings.Contains(resp1, "Draft") {
		t.Errorf("call 1: expected draft, got: %s", resp1)
	}

	// Second call to mock-planner → final
	resp2 := doCompletion(t, s, "mock-planner")
	if !strings.Contains(resp2, "Final") {
		t.Errorf("call 2: expected final, got: %s", resp2)
	}

	// Third call (beyond sequence) → repeats last
	resp3 := doCompletion(t, s, "mock-planner")
	if !strings.Contains(resp3, "Final") {
		t.Errorf("call 3: expected final (repeat last), got: %s", resp3)
	}

	// Enhancer calls are independent
	enhResp := doCompletion(t, s, "mock-enhancer")
	if !strings.Contains(enhResp, "Enhanced") {
		t.Errorf("enhancer: expected enhanced text, got: %s", enhResp)
	}
}

func TestBuiltinPlanWithoutFixtures(t *testing.T) {
	s := newServer(nil)

	resp := doCompletion(t, s, "any-model-at-all")
	if !strings.Contains(resp, "Architecture Plan") {
		t.Errorf("expected built-in plan, got: %s", resp)
	}
	if len(resp) < 100 {
		t.Errorf("built-in plan too short: %d chars", len(resp))
	}
}

func TestErrorModelSuffix(t *testing.T) {
	s := newServer(nil)

	body := strings.NewReader(`{"model":"mock-error","messages":[{"role":"user","content":"test"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	s.handleChatCompletions(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for -error model, got %d", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	fixtures := map[string][]string{
		"mock-planner":  {"# Plan"},
		"mock-enhancer": {"Enhanced."},
	}

	s := newServer(fixtures)

	// Make some calls
	doCompletion(t, s, "mock-planner")
	doCompletion(t, s, "mock-planner")
	doCompletion(t, s, "mock-enhancer")

	// Query stats
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	s.handleStats(w, req)

	var stats struct {
		TotalCalls   int64            `json:"total_calls"`
		CallsByModel map[string]int64 `json:"calls_by_model"`
	}
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}

	if stats.TotalCalls != 3 {
		t.Errorf("total_calls: expected 3, got %d", stats.TotalCalls)
	}
	if stats.CallsByModel["mock-planner"] != 2 {
		t.Errorf("mock-planner calls: expected 2, got %d", stats.CallsByModel["mock-planner"])
	}
	if stats.CallsByModel["mock-enhancer"] != 1 {
		t.Errorf("mock-enhancer calls: expected 1, got %d", stats.CallsByModel["mock-enhancer"])
	}
}

func TestStripMockPrefix(t *testing.T) {
	fixtures := map[string][]string{
		"planner": {"# Plan for prefix resolution"},
	}

	s := newServer(fixtures)

	// Request with "mock-" prefix should resolve to "planner"
	resp := doCompletion(t, s, "mock-planner")
	if !strings.Contains(resp, "prefix resolution") {
		t.Errorf("expected mock-prefix stripping to resolve, got: %s", resp)
	}
}

func TestUnknownModelReturns404(t *testing.T) {
	fixtures := map[string][]string{
		"mock-planner": {"# Plan"},
	}

	s := newServer(fixtures)

	body := strings.NewReader(`{"model":"mystery","messages":[{"role":"user","content":"test"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	s.handleChatCompletions(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown model, got %d", w.Code)
	}
}

func TestCapturedRequests(t *testing.T) {
	fixtures := map[string][]string{
		"mock-planner": {"# Plan"},
	}

	s := newServer(fixtures)

	body := strings.NewReader(`{
		"model": "mock-planner",
		"messages": [
			{"role": "system", "content": "You are a software architect."},
			{"role": "user", "content": "Plan a shop"}
		],
		"max_tokens": 16384
	}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	s.handleChatCompletions(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body: %s", w.Code, w.Body.String())
	}

	reqReq := httptest.NewRequest(http.MethodGet, "/requests?model=mock-planner", nil)
	reqW := httptest.NewRecorder()
	s.handleRequests(reqW, reqReq)

	var captured struct {
		RequestsByModel map[string][]capturedRequest `json:"requests_by_model"`
	}
	if err := json.NewDecoder(reqW.Body).Decode(&captured); err != nil {
		t.Fatalf("decode requests: %v", err)
	}

	reqs := captured.RequestsByModel["mock-planner"]
	if len(reqs) != 1 {
		t.Fatalf("expected 1 captured request, got %d", len(reqs))
	}
	if reqs[0].CallIndex != 1 {
		t.Errorf("call_index: expected 1, got %d", reqs[0].CallIndex)
	}
	if len(reqs[0].Messages) != 2 {
		t.Fatalf("expected 2 captured messages, got %d", len(reqs[0].Messages))
	}
	if reqs[0].Messages[0].Role != "system" {
		t.Errorf("first message role: expected system, got %q", reqs[0].Messages[0].Role)
	}
	if reqs[0].MaxTokens == nil || *reqs[0].MaxTokens != 16384 {
		t.Errorf("max_tokens not captured: %v", reqs[0].MaxTokens)
	}
}

func TestNumberedFileRegex(t *testing.T) {
	tests := []struct {
		filename string
		wantBase string
		wantNum  string
		match    bool
	}{
		{"mock-planner.1.md", "mock-planner", "1", true},
		{"mock-planner.2.md", "mock-planner", "2", true},
		{"mock-planner.10.txt", "mock-planner", "10", true},
		{"mock-planner.md", "", "", false},
		{"mock-enhancer.txt", "", "", false},
		{"mock-planner.1.json", "", "", false},
	}

	for _, tt := range tests {
		matches := numberedFileRe.FindStringSubmatch(tt.filename)
		if tt.match {
			if matches == nil {
				t.Errorf("%s: expected match, got nil", tt.filename)
				continue
			}
			if matches[1] != tt.wantBase {
				t.Errorf("%s: base=%q, want %q", tt.filename, matches[1], tt.wantBase)
			}
			if matches[2] != tt.wantNum {
				t.Errorf("%s: num=%q, want %q", tt.filename, matches[2], tt.wantNum)
			}
		} else {
			if matches != nil {
				t.Errorf("%s: expected no match, got %v", tt.filename, matches)
			}
		}
	}
}

// --- helpers ---

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func doCompletion(t *testing.T, s *server, model string) string {
	t.Helper()
	body := strings.NewReader(`{"model":"` + model + `","messages":[{"role":"user","content":"test"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	s.handleChatCompletions(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("model %s: status %d, body: %s", model, w.Code, w.Body.String())
	}

	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(resp.Choices) == 0 {
		t.Fatalf("no choices in response")
	}

	return resp.Choices[0].Message.Content
}
