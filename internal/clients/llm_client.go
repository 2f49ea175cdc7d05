/**
 * LLM Client - Header Role Fallback
 *
 * Talks to an OpenAI-compatible chat completions endpoint. The worker
 * uses it for exactly one thing: the tier-3 header fallback, which sends
 * up to three sample table rows and expects a strict JSON object mapping
 * column roles to column indexes. The response format is pinned to
 * json_object so the model cannot answer in prose.
 *
 * Single attempt per document; the timeout comes from the caller's
 * context. Structural validation of the returned mapping happens in the
 * extraction pipeline, not here.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vetpipe/labreport-worker/internal/logging"
)

// LLMClient handles communication with an OpenAI-compatible LLM service.
type LLMClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *logging.Logger
}

// ChatCompletionRequest is the OpenAI-compatible request body.
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatMessage is one conversation turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat pins the completion to a machine-readable shape.
type ResponseFormat struct {
	Type string `json:"type"` // "json_object"
}

// ChatCompletionResponse is the OpenAI-compatible response body.
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

const headerRoleSystemPrompt = `You classify the columns of a veterinary laboratory result table.
Given sample rows with cells separated by " | ", respond with a JSON object
mapping role names to zero-based column indexes. Valid roles: "name",
"result", "unit", "reference", "min", "max". Use "reference" for a combined
range column (e.g. "6.0-17.0"), or "min" and "max" when the bounds are
separate columns. Include only roles you can actually see. Respond with the
JSON object and nothing else.`

// NewLLMClient creates an LLM client for the header fallback.
func NewLLMClient(baseURL, apiKey, model string, timeout time.Duration) *LLMClient {
	return &LLMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.NewLogger("LLMClient"),
	}
}

// ResolveHeaderRoles asks the model to map table roles to column indexes.
// Implements the extraction pipeline's header fallback interface.
func (c *LLMClient) ResolveHeaderRoles(ctx context.Context, sampleLines []string) (map[string]int, error) {
	c.logger.Info("Requesting header role mapping",
		"model", c.model,
		"sampleLines", len(sampleLines))

	req := &ChatCompletionRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: headerRoleSystemPrompt},
			{Role: "user", Content: strings.Join(sampleLines, "\n")},
		},
		Temperature:    0,
		MaxTokens:      200,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}

	resp, err := c.createChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)

	var mapping map[string]int
	if err := json.Unmarshal([]byte(content), &mapping); err != nil {
		return nil, fmt.Errorf("completion is not a role mapping: %w", err)
	}

	c.logger.Info("Header role mapping received",
		"mapping", mapping,
		"totalTokens", resp.Usage.TotalTokens)

	return mapping, nil
}

// createChatCompletion executes one chat completion call.
func (c *LLMClient) createChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	endpoint := fmt.Sprintf("%s/v1/chat/completions", c.baseURL)

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	httpReq.Header.Set("X-Source", "labreport-worker")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to LLM service failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("LLM service returned status %d: %s", resp.StatusCode, string(body))
	}

	var completion ChatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &completion, nil
}

// HealthCheck verifies the LLM service is reachable.
func (c *LLMClient) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/v1/models", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
