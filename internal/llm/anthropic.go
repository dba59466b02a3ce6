package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"zproposal/internal/logging"
)

const (
	DefaultBaseURL    = "https://api.anthropic.com"
	DefaultModel      = "claude-3-5-sonnet-20241022"
	DefaultAPIVersion = "2023-06-01"

	// MaxTokens caps the length of a generated proposal.
	MaxTokens = 4000
)

// AnthropicClient calls the Messages API once per prompt. It never retries
// and sets no deadline of its own; the caller's context bounds the request.
type AnthropicClient struct {
	baseURL    string
	model      string
	apiVersion string
	client     *http.Client
	logger     *logging.Logger
}

// NewAnthropicClient creates a client. Empty arguments fall back to the defaults.
func NewAnthropicClient(baseURL, model, apiVersion string, logger *logging.Logger) *AnthropicClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &AnthropicClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiVersion: apiVersion,
		client:     &http.Client{},
		logger:     logger,
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string  `json:"type"`
		Text *string `json:"text"`
	} `json:"content"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends prompt as a single user message and returns the text of the
// first content block.
func (c *AnthropicClient) Complete(ctx context.Context, apiKey, prompt string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", ErrNoCredential
	}

	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: MaxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("anthropic: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", c.apiVersion)

	c.logger.WithFields(map[string]interface{}{
		"model":        c.model,
		"prompt_bytes": len(prompt),
	}).Debug("sending generation request")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		var errBody errorResponse
		if json.Unmarshal(respBody, &errBody) == nil {
			statusErr.Message = errBody.Error.Message
		}
		c.logger.WithContext("status", resp.StatusCode).Warn("generation request rejected: %s", statusErr.Error())
		return "", statusErr
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", ErrInvalidResponse
	}
	if len(parsed.Content) == 0 || parsed.Content[0].Text == nil {
		return "", ErrInvalidResponse
	}
	return *parsed.Content[0].Text, nil
}
