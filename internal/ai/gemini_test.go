package ai

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/retakeai/retake/internal/config"
)

func newTestClient(t *testing.T) (*GeminiClient, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	client, err := NewGeminiClient(config.AIConfig{
		Provider:   "gemini",
		APIKey:     "test-key",
		Model:      "gemini-2.0-flash",
		EmbedModel: "text-embedding-004",
	}, &http.Client{Transport: transport}, zap.NewNop())
	require.NoError(t, err)
	return client, transport
}

func TestNewGeminiClientRequiresAPIKey(t *testing.T) {
	_, err := NewGeminiClient(config.AIConfig{}, nil, zap.NewNop())
	require.Error(t, err)
}

func TestExtractIntent(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost,
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent",
		httpmock.NewStringResponder(http.StatusOK, `{
			"candidates": [{
				"content": {
					"parts": [{"text": "{\"team_slug\": \"sentinels\", \"map\": \"ascent\", \"round_type\": null}"}]
				}
			}]
		}`))

	intent, err := client.ExtractIntent(context.Background(), "sentinels on ascent")
	require.NoError(t, err)
	assert.Equal(t, "sentinels", intent.TeamSlug)
	assert.Equal(t, "ascent", intent.MapName)
	assert.Empty(t, intent.RoundType)
}

func TestExtractIntentEmptyCandidates(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost,
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent",
		httpmock.NewStringResponder(http.StatusOK, `{"candidates": []}`))

	_, err := client.ExtractIntent(context.Background(), "anything")
	require.Error(t, err)
}

func TestExtractIntentMalformedModelJSON(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost,
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent",
		httpmock.NewStringResponder(http.StatusOK, `{
			"candidates": [{"content": {"parts": [{"text": "not json"}]}}]
		}`))

	_, err := client.ExtractIntent(context.Background(), "anything")
	require.Error(t, err)
}

func TestExtractIntentServerError(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost,
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent",
		httpmock.NewStringResponder(http.StatusTooManyRequests, `{"error": "quota"}`))

	_, err := client.ExtractIntent(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestEmbed(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost,
		"https://generativelanguage.googleapis.com/v1beta/models/text-embedding-004:embedContent",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "test-key", req.Header.Get("x-goog-api-key"))
			return httpmock.NewStringResponse(http.StatusOK,
				`{"embedding": {"values": [0.1, 0.2, 0.3]}}`), nil
		})

	vec, err := client.Embed(context.Background(), "pistol rounds", EmbedModeQuery)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedEmptyVector(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost,
		"https://generativelanguage.googleapis.com/v1beta/models/text-embedding-004:embedContent",
		httpmock.NewStringResponder(http.StatusOK, `{"embedding": {"values": []}}`))

	_, err := client.Embed(context.Background(), "anything", EmbedModeDocument)
	require.Error(t, err)
}

func TestNoopUnavailable(t *testing.T) {
	var n Noop
	_, err := n.ExtractIntent(context.Background(), "q")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = n.Embed(context.Background(), "q", EmbedModeQuery)
	assert.ErrorIs(t, err, ErrUnavailable)
}
