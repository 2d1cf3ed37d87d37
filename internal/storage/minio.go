package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage implements ObjectStorage for MinIO and other S3-compatible stores.
type MinIOStorage struct {
	mc         *minio.Client
	bucket     string
	maxRetries int
}

// MinIOConfig holds configuration for MinIO storage.
type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	UseTLS     bool
	MaxRetries int
}

// NewMinIOStorage creates a new MinIO storage client.
func NewMinIOStorage(bucket string, cfg MinIOConfig) (*MinIOStorage, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinIOStorage{mc: mc, bucket: bucket, maxRetries: cfg.MaxRetries}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (m *MinIOStorage) EnsureBucket(ctx context.Context) error {
	exists, err := m.mc.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return m.mc.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// Put writes body to bucket/key without a content type.
func (m *MinIOStorage) Put(ctx context.Context, key string, body []byte) error {
	err := retryWithBackoff(ctx, m.maxRetries, func() error {
		_, err := m.mc.PutObject(ctx, m.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{})
		return err
	})
	if err != nil {
		return uploadError(key, err)
	}
	return nil
}

// Get returns the body of an object.
func (m *MinIOStorage) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.mc.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isMinIONotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

// Exists checks if an object exists.
func (m *MinIOStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.mc.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isMinIONotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes an object.
func (m *MinIOStorage) Delete(ctx context.Context, key string) error {
	if err := m.mc.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// ListObjects returns all object keys under the given prefix.
func (m *MinIOStorage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var objects []string
	for obj := range m.mc.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		objects = append(objects, obj.Key)
	}
	return objects, nil
}

func isMinIONotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}
