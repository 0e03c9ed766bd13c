package archive

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCS writes artifacts to a Google Cloud Storage bucket. Authentication
// comes from Application Default Credentials.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS builds the client and verifies the bucket is reachable so a
// misconfigured deployment fails at startup instead of at first write.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check bucket %q: %w", bucket, err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Put uploads data and returns a gs:// URI.
func (s *GCS) Put(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("object path is required")
	}
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", path, err)
	}
	// Close finalizes the upload; the object does not exist until it
	// returns nil.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %s: %w", path, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}

// Close releases the underlying client.
func (s *GCS) Close() error {
	return s.client.Close()
}
