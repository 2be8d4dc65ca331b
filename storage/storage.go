// Package storage persists planforge entities in NATS JetStream: projects,
// plans, and generation artifacts live in key-value buckets, raw uploads in
// an object store. Project writes are revision-checked so the state machine
// gets compare-and-swap semantics out of the Update path.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

// Default bucket names for each entity type.
const (
	BucketProjects  = "PLANFORGE_PROJECTS"
	BucketPlans     = "PLANFORGE_PLANS"
	BucketArtifacts = "PLANFORGE_ARTIFACTS"
	BucketUploads   = "PLANFORGE_UPLOADS"
)

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Planforge %s storage", strings.ToLower(name)),
		History:     5, // Keep last 5 revisions
	})
}
