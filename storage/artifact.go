package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/planforge/planforge/llm"
)

// ArtifactStore persists generation audit records. Keys take the form
// "<project_id>.<artifact_id>", so one project's artifacts are a key-prefix
// scan rather than a full-bucket filter.
type ArtifactStore struct {
	kv jetstream.KeyValue
}

var _ llm.ArtifactStore = (*ArtifactStore)(nil)

// NewArtifactStore opens the artifact bucket, creating it if needed.
func NewArtifactStore(ctx context.Context, js jetstream.JetStream, bucket string) (*ArtifactStore, error) {
	kv, err := getOrCreateBucket(ctx, js, bucket)
	if err != nil {
		return nil, fmt.Errorf("create artifact bucket: %w", err)
	}
	return &ArtifactStore{kv: kv}, nil
}

// Record stores one generation artifact. Artifacts are append-only, so the
// write is a Create rather than a Put.
func (s *ArtifactStore) Record(ctx context.Context, a *llm.Artifact) error {
	if a.ID == "" {
		return fmt.Errorf("artifact ID is required")
	}
	if a.ProjectID == "" {
		return fmt.Errorf("artifact project ID is required")
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	if _, err := s.kv.Create(ctx, a.ProjectID+"."+a.ID, data); err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}

	return nil
}

// ListByProject returns a project's artifacts oldest first.
func (s *ArtifactStore) ListByProject(ctx context.Context, projectID string) ([]*llm.Artifact, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list artifact keys: %w", err)
	}

	prefix := projectID + "."
	artifacts := make([]*llm.Artifact, 0)
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		var a llm.Artifact
		if err := json.Unmarshal(entry.Value(), &a); err != nil {
			continue
		}
		artifacts = append(artifacts, &a)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.Before(artifacts[j].CreatedAt)
	})

	return artifacts, nil
}
