package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pharmaflow/pharmacy-backend/pkg/config"
)

// CompletionClient calls an OpenAI-compatible chat completions API. A nil
// client is valid and means no credential is configured; callers fall back
// to templated responses.
type CompletionClient struct {
	apiURL     string
	apiKey     string
	referer    string
	model      string
	httpClient *http.Client
}

// NewCompletionClient returns nil when no API key is configured, so the
// chatbot runs fully offline by default.
func NewCompletionClient(cfg *config.ChatbotConfig) *CompletionClient {
	if cfg.APIKey == "" {
		return nil
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &CompletionClient{
		apiURL:  cfg.APIURL,
		apiKey:  cfg.APIKey,
		referer: cfg.Referer,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string              `json:"model"`
	Messages []completionMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the system prompt and user query and returns the model's
// reply text. Any transport failure or unexpected response shape is an
// error; the caller decides what to answer instead.
func (c *CompletionClient) Complete(ctx context.Context, systemPrompt, userQuery string) (string, error) {
	payload := completionRequest{
		Model: c.model,
		Messages: []completionMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userQuery},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("completion: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("completion: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("completion: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion: api returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("completion: parse response: %w", err)
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("completion: response has no message content")
	}

	return parsed.Choices[0].Message.Content, nil
}
