package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/planforge/planforge/workflow"
)

// ProjectStore persists projects in a NATS KV bucket. Get returns the entry
// revision alongside the project and Update requires it back, so concurrent
// status writers are detected instead of silently overwriting each other.
type ProjectStore struct {
	kv jetstream.KeyValue
}

var _ workflow.ProjectStore = (*ProjectStore)(nil)

// NewProjectStore opens the project bucket, creating it if needed.
func NewProjectStore(ctx context.Context, js jetstream.JetStream, bucket string) (*ProjectStore, error) {
	kv, err := getOrCreateBucket(ctx, js, bucket)
	if err != nil {
		return nil, fmt.Errorf("create project bucket: %w", err)
	}
	return &ProjectStore{kv: kv}, nil
}

// Create stores a new project keyed by its ID. It fails if the ID is
// already taken.
func (s *ProjectStore) Create(ctx context.Context, p *workflow.Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}

	if _, err := s.kv.Create(ctx, p.ID, data); err != nil {
		return fmt.Errorf("store project: %w", err)
	}

	return nil
}

// Get retrieves a project and the revision Update expects back.
func (s *ProjectStore) Get(ctx context.Context, id string) (*workflow.Project, uint64, error) {
	entry, err := s.kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, workflow.ErrProjectNotFound
		}
		return nil, 0, fmt.Errorf("get project: %w", err)
	}

	var p workflow.Project
	if err := json.Unmarshal(entry.Value(), &p); err != nil {
		return nil, 0, fmt.Errorf("unmarshal project: %w", err)
	}

	return &p, entry.Revision(), nil
}

// Update writes a project conditioned on the revision from Get. A stale
// revision means another writer got there first; the caller sees
// workflow.ErrConflict and decides whether to re-read and retry.
func (s *ProjectStore) Update(ctx context.Context, p *workflow.Project, revision uint64) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}

	if _, err := s.kv.Update(ctx, p.ID, data, revision); err != nil {
		if isWrongRevision(err) {
			return workflow.ErrConflict
		}
		return fmt.Errorf("update project: %w", err)
	}

	return nil
}

// isWrongRevision reports whether err is JetStream rejecting a write whose
// expected revision no longer matches the stored entry.
func isWrongRevision(err error) bool {
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
