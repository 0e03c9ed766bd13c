// Package ai wraps the external language-model capabilities the pipelines
// consume: free-text intent extraction and text embeddings. Both are
// best-effort; callers degrade on any error instead of aborting.
package ai

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by the no-op providers when no AI backend is
// configured.
var ErrUnavailable = errors.New("ai capability not configured")

// Intent is the structured, non-authoritative record extracted from a
// search query. Empty strings mean "not detected".
type Intent struct {
	TeamSlug  string `json:"team_slug"`
	MapName   string `json:"map"`
	RoundType string `json:"round_type"`
}

// IntentExtractor derives a best-effort Intent from free text.
type IntentExtractor interface {
	ExtractIntent(ctx context.Context, query string) (Intent, error)
}

// EmbedMode selects the task type a vector is generated for.
type EmbedMode string

// Embedding task types, matching the backing model's retrieval modes.
const (
	EmbedModeQuery    EmbedMode = "RETRIEVAL_QUERY"
	EmbedModeDocument EmbedMode = "RETRIEVAL_DOCUMENT"
)

// Embedder produces a fixed-length vector for text.
type Embedder interface {
	Embed(ctx context.Context, text string, mode EmbedMode) ([]float32, error)
}

// Noop implements both capabilities as permanently unavailable.
type Noop struct{}

// ExtractIntent always reports the capability as unavailable.
func (Noop) ExtractIntent(context.Context, string) (Intent, error) {
	return Intent{}, ErrUnavailable
}

// Embed always reports the capability as unavailable.
func (Noop) Embed(context.Context, string, EmbedMode) ([]float32, error) {
	return nil, ErrUnavailable
}
