// Package gcs provides a page archive backed by Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
}

// objectWriterFactory opens a writer for bucket/object; it is swapped in tests.
type objectWriterFactory func(ctx context.Context, bucket, object, contentType string) io.WriteCloser

// BlobStore writes archived pages to a configured GCS bucket.
type BlobStore struct {
	bucket    string
	newWriter objectWriterFactory
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	return newBlobStore(cfg, func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
		writer := client.Bucket(bucket).Object(object).NewWriter(ctx)
		if contentType != "" {
			writer.ContentType = contentType
		}
		return writer
	})
}

func newBlobStore(cfg Config, factory objectWriterFactory) (*BlobStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{bucket: cfg.Bucket, newWriter: factory}, nil
}

// PutObject uploads data to the configured bucket and returns a gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	writer := s.newWriter(ctx, s.bucket, path, contentType)
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}
