package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/planforge/planforge/workflow"
)

// PlanStore persists generated plans keyed by plan ID. Plans are immutable:
// regeneration writes a new plan and repoints the project; old entries stay.
type PlanStore struct {
	kv jetstream.KeyValue
}

// NewPlanStore opens the plan bucket, creating it if needed.
func NewPlanStore(ctx context.Context, js jetstream.JetStream, bucket string) (*PlanStore, error) {
	kv, err := getOrCreateBucket(ctx, js, bucket)
	if err != nil {
		return nil, fmt.Errorf("create plan bucket: %w", err)
	}
	return &PlanStore{kv: kv}, nil
}

// Put stores a plan.
func (s *PlanStore) Put(ctx context.Context, p *workflow.Plan) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	if _, err := s.kv.Put(ctx, p.ID, data); err != nil {
		return fmt.Errorf("store plan: %w", err)
	}

	return nil
}

// Get retrieves a plan by ID.
func (s *PlanStore) Get(ctx context.Context, id string) (*workflow.Plan, error) {
	entry, err := s.kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}

	var p workflow.Plan
	if err := json.Unmarshal(entry.Value(), &p); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}

	return &p, nil
}
