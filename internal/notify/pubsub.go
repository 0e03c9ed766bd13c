package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// PubSub publishes to Google Cloud Pub/Sub topics.
type PubSub struct {
	client *pubsub.Client
}

// NewPubSub connects to the project using Application Default Credentials.
func NewPubSub(ctx context.Context, projectID string) (*PubSub, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project id is required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &PubSub{client: client}, nil
}

// Publish marshals the payload to JSON and publishes it, blocking until the
// broker acknowledges.
func (p *PubSub) Publish(ctx context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	result := p.client.Topic(topic).Publish(ctx, &pubsub.Message{Data: data})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}
	return id, nil
}

// Close releases the underlying client.
func (p *PubSub) Close() error {
	return p.client.Close()
}
