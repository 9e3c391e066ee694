/*-------------------------------------------------------------------------
 *
 * sqlpilot - Tool Registry
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"context"
	"fmt"
	"time"

	"sqlpilot/internal/logging"
	"sqlpilot/internal/metrics"
)

// Handler is a function that executes a tool
type Handler func(ctx context.Context, args map[string]interface{}) (Response, error)

// Definition describes a tool to the reasoning service
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// InputSchema defines the JSON schema for tool input
type InputSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Required   []string               `json:"required,omitempty"`
}

// Response is the outcome of a tool execution. Failures travel inside the
// response as text with IsError set; they are never raised past the registry.
type Response struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// ContentItem represents a piece of content in a tool response
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Text joins the textual content of a response into one string.
func (r Response) Text() string {
	switch len(r.Content) {
	case 0:
		return ""
	case 1:
		return r.Content[0].Text
	}

	out := r.Content[0].Text
	for _, item := range r.Content[1:] {
		out += "\n" + item.Text
	}
	return out
}

// Tool pairs a definition with its handler
type Tool struct {
	Definition Definition
	Handler    Handler
}

// Registry is the closed set of tools the conversation loop can dispatch to.
// The set is fixed once wiring completes; nothing is resolved dynamically at
// call time beyond a map lookup.
type Registry struct {
	tools map[string]Tool
	names []string // registration order
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool. Unnamed tools, missing handlers, and duplicate names
// are wiring mistakes and are rejected here so they surface at startup.
func (r *Registry) Register(tool Tool) error {
	name := tool.Definition.Name
	if name == "" {
		return fmt.Errorf("tool has no name")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool %q has no handler", name)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}

	r.tools[name] = tool
	r.names = append(r.names, name)
	return nil
}

// MustRegister registers a set of tools and panics on a wiring mistake.
// Intended for startup only.
func (r *Registry) MustRegister(toolset ...Tool) {
	for _, tool := range toolset {
		if err := r.Register(tool); err != nil {
			panic(err)
		}
	}
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	tool, exists := r.tools[name]
	return tool, exists
}

// List returns all tool definitions in registration order
func (r *Registry) List() []Definition {
	definitions := make([]Definition, 0, len(r.names))
	for _, name := range r.names {
		definitions = append(definitions, r.tools[name].Definition)
	}
	return definitions
}

// Execute runs a tool by name. Every failure mode, including an unknown
// tool, a handler error, or a handler panic, comes back as an error
// response so the conversation loop can relay it to the model.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (resp Response) {
	start := time.Now()
	defer func() {
		metrics.ObserveToolCall(name, resp.IsError, time.Since(start))
	}()

	tool, exists := r.Get(name)
	if !exists {
		resp, _ = NewToolError("Tool not found: " + name)
		return resp
	}

	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("tool panicked", "tool", name, "panic", fmt.Sprintf("%v", rec))
			resp, _ = NewToolError(fmt.Sprintf("Tool %s failed unexpectedly: %v", name, rec))
		}
	}()

	result, err := tool.Handler(ctx, args)
	if err != nil {
		resp, _ = NewToolError(fmt.Sprintf("Tool %s failed: %v", name, err))
		return resp
	}
	return result
}

// NewToolError creates a standardized error response for tools
func NewToolError(message string) (Response, error) {
	return Response{
		Content: []ContentItem{
			{
				Type: "text",
				Text: message,
			},
		},
		IsError: true,
	}, nil
}

// NewToolSuccess creates a standardized success response for tools
func NewToolSuccess(message string) (Response, error) {
	return Response{
		Content: []ContentItem{
			{
				Type: "text",
				Text: message,
			},
		},
		IsError: false,
	}, nil
}
