/*-------------------------------------------------------------------------
 *
 * sqlpilot - Reasoning Service Types
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"context"
	"time"

	"sqlpilot/internal/tools"
)

// Message represents one turn of conversation history. Content is either a
// plain string or a slice of typed blocks (TextContent, ToolUse, ToolResult).
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// TextContent represents text content in a message
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolUse represents a tool invocation requested by the model
type ToolUse struct {
	Type  string                 `json:"type"`
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// ToolResult carries the outcome of one tool invocation back to the model,
// correlated by the ID of the ToolUse that requested it.
type ToolResult struct {
	Type      string      `json:"type"`
	ToolUseID string      `json:"tool_use_id"`
	Content   interface{} `json:"content"`
	IsError   bool        `json:"is_error,omitempty"`
}

// Response is a provider-neutral reasoning response. Content items are
// TextContent or ToolUse values; StopReason is "tool_use" when the model
// wants tools run before it can continue.
type Response struct {
	Content    []interface{}
	StopReason string
}

// ToolUses extracts the tool invocations from a response, in request order.
func (r Response) ToolUses() []ToolUse {
	var uses []ToolUse
	for _, item := range r.Content {
		if use, ok := item.(ToolUse); ok {
			uses = append(uses, use)
		}
	}
	return uses
}

// Text joins the text blocks of a response.
func (r Response) Text() string {
	var out string
	for _, item := range r.Content {
		if text, ok := item.(TextContent); ok {
			if out != "" {
				out += "\n"
			}
			out += text.Text
		}
	}
	return out
}

// ContentText flattens message content to displayable text. Plain strings
// pass through; block slices contribute their text blocks joined by
// newlines. Tool invocations and tool results carry no displayable text and
// yield "".
func ContentText(content interface{}) string {
	switch c := content.(type) {
	case string:
		return c
	case []interface{}:
		var out string
		for _, item := range c {
			text, ok := item.(TextContent)
			if !ok || text.Text == "" {
				continue
			}
			if out != "" {
				out += "\n"
			}
			out += text.Text
		}
		return out
	default:
		return ""
	}
}

// Client is a reasoning-service client. Implementations send the system
// prompt, the full ordered history, and the available tool definitions, and
// return the model's next message.
type Client interface {
	Chat(ctx context.Context, system string, messages []Message, toolset []tools.Definition) (Response, error)
	Provider() string
}

// Options configures a reasoning client.
type Options struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64

	// BaseURL overrides the provider endpoint. Empty means the public API.
	BaseURL string

	// Timeout bounds each HTTP request. Zero means no client timeout; the
	// caller's context still applies.
	Timeout time.Duration
}
