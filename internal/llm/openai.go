/*-------------------------------------------------------------------------
 *
 * sqlpilot - OpenAI Reasoning Client
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
	"strings"

	"sqlpilot/internal/tools"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// openaiClient implements Client for the OpenAI Chat Completions API
type openaiClient struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	baseURL     string
	client      *http.Client
}

// NewOpenAIClient creates a client for the OpenAI Chat Completions API
func NewOpenAIClient(opts Options) Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openaiClient{
		apiKey:      opts.APIKey,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		baseURL:     baseURL,
		client:      &http.Client{Timeout: opts.Timeout},
	}
}

func (c *openaiClient) Provider() string {
	return "openai"
}

type openaiFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openaiToolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function openaiFunction `json:"function"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiFunctionDef struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  tools.InputSchema `json:"parameters"`
}

type openaiTool struct {
	Type     string            `json:"type"`
	Function openaiFunctionDef `json:"function"`
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Tools       []openaiTool    `json:"tools,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openaiResponse struct {
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

func (c *openaiClient) Chat(ctx context.Context, system string, messages []Message, toolset []tools.Definition) (Response, error) {
	openaiTools := make([]openaiTool, 0, len(toolset))
	for _, tool := range toolset {
		openaiTools = append(openaiTools, openaiTool{
			Type: "function",
			Function: openaiFunctionDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}

	req := openaiRequest{
		Model:       c.model,
		Messages:    convertToOpenAI(system, messages),
		Tools:       openaiTools,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	reqData, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewBuffer(reqData))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

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

	var openaiResp openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(openaiResp.Choices) == 0 {
		return Response{}, fmt.Errorf("response contained no choices")
	}

	choice := openaiResp.Choices[0]
	content := make([]interface{}, 0, 1+len(choice.Message.ToolCalls))

	if choice.Message.Content != "" {
		content = append(content, TextContent{
			Type: "text",
			Text: choice.Message.Content,
		})
	}

	for _, call := range choice.Message.ToolCalls {
		input := make(map[string]interface{})
		if call.Function.Arguments != "" {
			// arguments arrive as a JSON-encoded string
			if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
				input = make(map[string]interface{})
			}
		}
		content = append(content, ToolUse{
			Type:  "tool_use",
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: input,
		})
	}

	stopReason := "end_turn"
	if choice.FinishReason == "tool_calls" {
		stopReason = "tool_use"
	}

	return Response{
		Content:    content,
		StopReason: stopReason,
	}, nil
}

// convertToOpenAI maps the provider-neutral history onto the Chat
// Completions message shapes: assistant tool invocations become tool_calls,
// and each ToolResult becomes its own role:"tool" message.
func convertToOpenAI(system string, messages []Message) []openaiMessage {
	out := make([]openaiMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openaiMessage{Role: "system", Content: system})
	}

	for _, msg := range messages {
		switch content := msg.Content.(type) {
		case string:
			out = append(out, openaiMessage{Role: msg.Role, Content: content})

		case []ToolResult:
			for _, result := range content {
				out = append(out, openaiMessage{
					Role:       "tool",
					ToolCallID: result.ToolUseID,
					Content:    toolResultText(result),
				})
			}

		case []interface{}:
			converted := openaiMessage{Role: msg.Role}
			var texts []string
			for _, item := range content {
				switch block := item.(type) {
				case TextContent:
					texts = append(texts, block.Text)
				case ToolUse:
					args, err := json.Marshal(block.Input)
					if err != nil {
						args = []byte("{}")
					}
					converted.ToolCalls = append(converted.ToolCalls, openaiToolCall{
						ID:   block.ID,
						Type: "function",
						Function: openaiFunction{
							Name:      block.Name,
							Arguments: string(args),
						},
					})
				case ToolResult:
					out = append(out, openaiMessage{
						Role:       "tool",
						ToolCallID: block.ToolUseID,
						Content:    toolResultText(block),
					})
				}
			}
			converted.Content = strings.Join(texts, "\n")
			if converted.Content != "" || len(converted.ToolCalls) > 0 {
				out = append(out, converted)
			}
		}
	}

	return out
}

// toolResultText flattens a tool result's content into the plain string the
// Chat Completions API expects.
func toolResultText(result ToolResult) string {
	switch content := result.Content.(type) {
	case string:
		return content
	case []tools.ContentItem:
		var texts []string
		for _, item := range content {
			texts = append(texts, item.Text)
		}
		return strings.Join(texts, "\n")
	default:
		data, err := json.Marshal(content)
		if err != nil {
			return fmt.Sprintf("%v", content)
		}
		return string(data)
	}
}
