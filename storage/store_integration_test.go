//go:build integration

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/planforge/planforge/llm"
	"github.com/planforge/planforge/workflow"
)

// startJetStream runs an embedded NATS server with JetStream enabled and
// returns a context bound to it. Each test gets its own server and store
// directory so tests stay independent.
func startJetStream(t *testing.T) jetstream.JetStream {
	t.Helper()

	opts := &server.Options{
		Port:      -1, // Random available port
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("create embedded NATS server: %v", err)
	}

	go ns.Start()
	t.Cleanup(ns.Shutdown)

	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS server failed to start")
	}

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("connect to embedded NATS: %v", err)
	}
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("create JetStream context: %v", err)
	}

	return js
}

func TestProjectStore_CreateAndGet(t *testing.T) {
	js := startJetStream(t)
	ctx := context.Background()

	store, err := NewProjectStore(ctx, js, BucketProjects)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	p := workflow.NewProject("E-commerce platform", "owner@example.com", "claude")
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, revision, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("ID = %q, want %q", got.ID, p.ID)
	}
	if got.Name != "E-commerce platform" {
		t.Errorf("Name = %q, want %q", got.Name, "E-commerce platform")
	}
	if got.Status != workflow.StatusInitial {
		t.Errorf("Status = %q, want %q", got.Status, workflow.StatusInitial)
	}
	if revision == 0 {
		t.Error("Get() revision = 0, want the KV entry revision")
	}
}

func TestProjectStore_CreateDuplicate(t *testing.T) {
	js := startJetStream(t)
	ctx := context.Background()

	store, err := NewProjectStore(ctx, js, BucketProjects)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	p := workflow.NewProject("Duplicate", "owner@example.com", "claude")
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.Create(ctx, p); err == nil {
		t.Error("Create() with an existing ID should return an error")
	}
}

func TestProjectStore_GetNotFound(t *testing.T) {
	js := startJetStream(t)
	ctx := context.Background()

	store, err := NewProjectStore(ctx, js, BucketProjects)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	_, _, err = store.Get(ctx, "no-such-project")
	if !errors.Is(err, workflow.ErrProjectNotFound) {
		t.Errorf("Get() error = %v, want ErrProjectNotFound", err)
	}
}

func TestProjectStore_StaleRevisionConflict(t *testing.T) {
	js := startJetStream(t)
	ctx := context.Background()

	store, err := NewProjectStore(ctx, js, BucketProjects)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	p := workflow.NewProject("Race target", "owner@example.com", "claude")
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Two readers fetch the same revision; only the first write wins.
	first, revision, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	second, staleRevision, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	first.Status = workflow.StatusElicitation
	if err := store.Update(ctx, first, revision); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	second.Status = workflow.StatusError
	err = store.Update(ctx, second, staleRevision)
	if !errors.Is(err, workflow.ErrConflict) {
		t.Fatalf("Update() with stale revision error = %v, want ErrConflict", err)
	}

	got, _, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != workflow.StatusElicitation {
		t.Errorf("Status after conflict = %q, want %q", got.Status, workflow.StatusElicitation)
	}
}

func TestPlanStore_PutAndGet(t *testing.T) {
	js := startJetStream(t)
	ctx := context.Background()

	store, err := NewPlanStore(ctx, js, BucketPlans)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	content := "# Architectural Plan\n\nThis plan describes the system architecture in enough " +
		"detail to satisfy the minimum content length required of generated plans."
	plan, err := workflow.NewPlan("proj-1", content, "claude", false)
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}

	if err := store.Put(ctx, plan); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, plan.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ProjectID != "proj-1" {
		t.Errorf("ProjectID = %q, want %q", got.ProjectID, "proj-1")
	}
	if got.Content != content {
		t.Errorf("Content = %q, want %q", got.Content, content)
	}
	if got.Fallback {
		t.Error("Fallback = true, want false")
	}
}

func TestPlanStore_GetNotFound(t *testing.T) {
	js := startJetStream(t)
	ctx := context.Background()

	store, err := NewPlanStore(ctx, js, BucketPlans)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	_, err = store.Get(ctx, "no-such-plan")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestArtifactStore_ListByProject(t *testing.T) {
	js := startJetStream(t)
	ctx := context.Background()

	store, err := NewArtifactStore(ctx, js, BucketArtifacts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	now := time.Now().UTC()
	records := []*llm.Artifact{
		{ID: "art-2", ProjectID: "proj-a", Type: llm.ArtifactTypeGeneration, Category: "plan", CreatedAt: now.Add(time.Second)},
		{ID: "art-1", ProjectID: "proj-a", Type: llm.ArtifactTypeGeneration, Category: "enhance", CreatedAt: now},
		{ID: "art-3", ProjectID: "proj-b", Type: llm.ArtifactTypeGeneration, Category: "plan", CreatedAt: now},
	}
	for _, a := range records {
		if err := store.Record(ctx, a); err != nil {
			t.Fatalf("Record(%s) error = %v", a.ID, err)
		}
	}

	got, err := store.ListByProject(ctx, "proj-a")
	if err != nil {
		t.Fatalf("ListByProject() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByProject() returned %d artifacts, want 2", len(got))
	}
	if got[0].ID != "art-1" || got[1].ID != "art-2" {
		t.Errorf("ListByProject() order = [%s %s], want [art-1 art-2]", got[0].ID, got[1].ID)
	}

	empty, err := store.ListByProject(ctx, "proj-none")
	if err != nil {
		t.Fatalf("ListByProject() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListByProject() for unknown project returned %d artifacts, want 0", len(empty))
	}
}

func TestArtifactStore_RecordRequiresIDs(t *testing.T) {
	js := startJetStream(t)
	ctx := context.Background()

	store, err := NewArtifactStore(ctx, js, BucketArtifacts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Record(ctx, &llm.Artifact{ProjectID: "proj-a"}); err == nil {
		t.Error("Record() without an artifact ID should return an error")
	}
	if err := store.Record(ctx, &llm.Artifact{ID: "art-1"}); err == nil {
		t.Error("Record() without a project ID should return an error")
	}
}

func TestUploadStore_RoundTrip(t *testing.T) {
	js := startJetStream(t)
	ctx := context.Background()

	store, err := NewUploadStore(ctx, js, BucketUploads)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	raw := []byte("Requirements: the system shall do the needful.")
	if err := store.Put(ctx, "proj-a/doc-1-brd.txt", raw); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, "proj-a/doc-1-brd.txt")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != string(raw) {
		t.Errorf("Get() = %q, want %q", got, raw)
	}

	_, err = store.Get(ctx, "proj-a/missing.txt")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() for missing object error = %v, want ErrNotFound", err)
	}
}
