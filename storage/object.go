package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// UploadStore keeps raw uploaded documents in a NATS object store. The
// upload manager writes the original bytes here before any parsing, so the
// source document survives whatever the pipeline does to it.
type UploadStore struct {
	obj jetstream.ObjectStore
}

// NewUploadStore opens the upload object store, creating it if needed.
func NewUploadStore(ctx context.Context, js jetstream.JetStream, bucket string) (*UploadStore, error) {
	obj, err := js.ObjectStore(ctx, bucket)
	if err == nil {
		return &UploadStore{obj: obj}, nil
	}
	// Bucket doesn't exist, create it
	obj, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "Planforge raw upload storage",
	})
	if err != nil {
		return nil, fmt.Errorf("create upload bucket: %w", err)
	}
	return &UploadStore{obj: obj}, nil
}

// Put stores raw bytes under name, replacing any previous object.
func (s *UploadStore) Put(ctx context.Context, name string, data []byte) error {
	if _, err := s.obj.PutBytes(ctx, name, data); err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	return nil
}

// Get retrieves the raw bytes stored under name.
func (s *UploadStore) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := s.obj.GetBytes(ctx, name)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return data, nil
}
