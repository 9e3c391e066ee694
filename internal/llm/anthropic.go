/*-------------------------------------------------------------------------
 *
 * sqlpilot - Anthropic Reasoning Client
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"sqlpilot/internal/tools"
)

const defaultAnthropicBaseURL = "https://api.anthropic.com"

// anthropicClient implements Client for the Anthropic Messages API
type anthropicClient struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	baseURL     string
	client      *http.Client
}

// NewAnthropicClient creates a client for the Anthropic Messages API
func NewAnthropicClient(opts Options) Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &anthropicClient{
		apiKey:      opts.APIKey,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		baseURL:     baseURL,
		client:      &http.Client{Timeout: opts.Timeout},
	}
}

func (c *anthropicClient) Provider() string {
	return "anthropic"
}

type anthropicRequest struct {
	Model       string                   `json:"model"`
	MaxTokens   int                      `json:"max_tokens"`
	System      string                   `json:"system,omitempty"`
	Messages    []Message                `json:"messages"`
	Tools       []map[string]interface{} `json:"tools,omitempty"`
	Temperature float64                  `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	ID         string                   `json:"id"`
	Type       string                   `json:"type"`
	Role       string                   `json:"role"`
	Content    []map[string]interface{} `json:"content"`
	StopReason string                   `json:"stop_reason"`
}

func (c *anthropicClient) Chat(ctx context.Context, system string, messages []Message, toolset []tools.Definition) (Response, error) {
	anthropicTools := make([]map[string]interface{}, 0, len(toolset))
	for _, tool := range toolset {
		anthropicTools = append(anthropicTools, map[string]interface{}{
			"name":         tool.Name,
			"description":  tool.Description,
			"input_schema": tool.InputSchema,
		})
	}

	req := anthropicRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      system,
		Messages:    messages,
		Tools:       anthropicTools,
		Temperature: c.temperature,
	}

	reqData, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewBuffer(reqData))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Response{}, fmt.Errorf("API error %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return Response{}, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var anthropicResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthropicResp); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}

	content := make([]interface{}, 0, len(anthropicResp.Content))
	for _, item := range anthropicResp.Content {
		itemType, ok := item["type"].(string)
		if !ok {
			continue
		}
		switch itemType {
		case "text":
			text, ok := item["text"].(string)
			if !ok {
				continue
			}
			content = append(content, TextContent{
				Type: "text",
				Text: text,
			})
		case "tool_use":
			id, ok := item["id"].(string)
			if !ok {
				continue
			}
			name, ok := item["name"].(string)
			if !ok {
				continue
			}
			input, ok := item["input"].(map[string]interface{})
			if !ok {
				input = make(map[string]interface{})
			}
			content = append(content, ToolUse{
				Type:  "tool_use",
				ID:    id,
				Name:  name,
				Input: input,
			})
		}
	}

	return Response{
		Content:    content,
		StopReason: anthropicResp.StopReason,
	}, nil
}
