package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// NewStorageClient creates the Cloud Storage client used by the uploader.
// It centralizes client creation so credentials handling lives in one place.
func NewStorageClient(ctx context.Context) (*storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return client, nil
}
