// Package archive persists raw scraped page bodies so a series can be
// re-normalized later without re-fetching. Archival is always best-effort;
// the pipelines log and continue when a write fails.
package archive

import "context"

// Store writes one named artifact and returns its URI.
type Store interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
	Close() error
}

// Noop discards everything. Used when no archive is configured.
type Noop struct{}

// Put discards the data.
func (Noop) Put(_ context.Context, path string, _ string, _ []byte) (string, error) {
	return "noop://" + path, nil
}

// Close is a no-op.
func (Noop) Close() error { return nil }
