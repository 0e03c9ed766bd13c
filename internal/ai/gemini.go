package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/retakeai/retake/internal/config"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient implements IntentExtractor and Embedder against the Gemini
// REST API.
type GeminiClient struct {
	cfg        config.AIConfig
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGeminiClient builds a client from config. The HTTP client may be nil,
// in which case one with the configured timeout is created.
func NewGeminiClient(cfg config.AIConfig, httpClient *http.Client, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai.api_key is required")
	}
	if httpClient == nil {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &GeminiClient{
		cfg:        cfg,
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

const intentPromptTemplate = "Given the Valorant search query: '%s', extract: " +
	"1. 'team_slug' (return 'paperrex', 'drx', 'fnatic', 'nrg', 'sentinels', 'teamheretics', 'leviatán', 'loud', 'teamliquid'). " +
	"2. 'map' (ascent, bind, haven, lotus, sunset, abyss, split, fracture, icebox, breeze). " +
	"3. 'round_type' (thrifty, flawless, pistol, clutch, ace). " +
	"Return as JSON. Use null if not found."

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// ExtractIntent asks the model for a structured interpretation of the query.
func (c *GeminiClient) ExtractIntent(ctx context.Context, query string) (Intent, error) {
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: fmt.Sprintf(intentPromptTemplate, query)}}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
		},
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.cfg.Model)

	var resp generateResponse
	if err := c.post(ctx, endpoint, req, &resp); err != nil {
		return Intent{}, fmt.Errorf("intent extraction: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return Intent{}, fmt.Errorf("intent extraction: empty model response")
	}

	var intent Intent
	raw := resp.Candidates[0].Content.Parts[0].Text
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		return Intent{}, fmt.Errorf("intent extraction: parse model JSON: %w", err)
	}
	return intent, nil
}

type embedRequest struct {
	Content  content `json:"content"`
	TaskType string  `json:"taskType"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed returns a fixed-length vector for text in the given retrieval mode.
func (c *GeminiClient) Embed(ctx context.Context, text string, mode EmbedMode) ([]float32, error) {
	req := embedRequest{
		Content:  content{Parts: []part{{Text: text}}},
		TaskType: string(mode),
	}
	endpoint := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, c.cfg.EmbedModel)

	var resp embedResponse
	if err := c.post(ctx, endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embed: empty vector in response")
	}
	return resp.Embedding.Values, nil
}

func (c *GeminiClient) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call model API: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("model API status %d: %s", resp.StatusCode, snippet)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
