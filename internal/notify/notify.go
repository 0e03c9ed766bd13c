// Package notify emits pipeline events, primarily "tournament ingested"
// notifications that downstream consumers (cache warmers, frontends) react
// to. Publishing is best-effort.
package notify

import "context"

// Publisher delivers one JSON-serializable payload to a topic and returns
// the broker's message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
	Close() error
}

// Noop drops every message.
type Noop struct{}

// Publish discards the payload.
func (Noop) Publish(context.Context, string, any) (string, error) {
	return "noop", nil
}

// Close is a no-op.
func (Noop) Close() error { return nil }
