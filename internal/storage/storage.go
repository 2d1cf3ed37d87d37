// Package storage provides blob store abstractions for persisting consumed records.
package storage

import (
	"context"

	perrors "github.com/activitysink/activitysink/internal/errors"
)

// Common errors for storage operations. They match any storage error with
// the same code through errors.Is.
var (
	ErrObjectNotFound = perrors.New(perrors.ErrCategoryStorage, perrors.CodeObjectNotFound, "object not found")
	ErrUploadFailed   = perrors.New(perrors.ErrCategoryStorage, perrors.CodeUploadFailed, "upload failed")
)

// ObjectWriter is the narrow capability the consumer needs: store bytes under a key.
type ObjectWriter interface {
	// Put writes body as a new object at key. No metadata or content type is set.
	Put(ctx context.Context, key string, body []byte) error
}

// ObjectStorage abstracts blob store operations.
// Implementations include S3, MinIO, and local filesystem for development.
type ObjectStorage interface {
	ObjectWriter

	// Get returns the body of the object at key.
	// Returns ErrObjectNotFound if the object does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes an object from storage. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// ListObjects returns all object keys under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// uploadError wraps a backend failure for key as a retryable storage error.
func uploadError(key string, cause error) error {
	return perrors.NewStorageError(perrors.CodeUploadFailed, "put "+key, cause)
}
