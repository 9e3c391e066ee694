/*-------------------------------------------------------------------------
 *
 * sqlpilot - OpenAI Reasoning Client Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIChatText(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("request path = %q, want /v1/chat/completions", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"message":       map[string]interface{}{"role": "assistant", "content": "Two tables."},
					"finish_reason": "stop",
				},
			},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(Options{APIKey: "sk-test", Model: "gpt-4o", MaxTokens: 1024, BaseURL: server.URL})

	resp, err := client.Chat(context.Background(), "You answer database questions.",
		[]Message{{Role: "user", Content: "How many tables?"}}, sampleToolset())
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}

	messages := gotBody["messages"].([]interface{})
	first := messages[0].(map[string]interface{})
	if first["role"] != "system" || first["content"] != "You answer database questions." {
		t.Errorf("first message = %v, want the system prompt", first)
	}

	sentTools := gotBody["tools"].([]interface{})
	tool := sentTools[0].(map[string]interface{})
	if tool["type"] != "function" {
		t.Errorf("tool type = %v, want function", tool["type"])
	}
	function := tool["function"].(map[string]interface{})
	if function["name"] != "list_schemas" {
		t.Errorf("function name = %v, want list_schemas", function["name"])
	}

	if resp.StopReason != "end_turn" {
		t.Errorf("StopReason = %q, want end_turn", resp.StopReason)
	}
	if resp.Text() != "Two tables." {
		t.Errorf("Text() = %q, want the answer", resp.Text())
	}
}

func TestOpenAIChatToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"message": map[string]interface{}{
						"role": "assistant",
						"tool_calls": []map[string]interface{}{
							{
								"id":   "call_1",
								"type": "function",
								"function": map[string]interface{}{
									"name":      "list_tables",
									"arguments": `{"schema": "sales"}`,
								},
							},
						},
					},
					"finish_reason": "tool_calls",
				},
			},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(Options{APIKey: "k", Model: "m", BaseURL: server.URL})

	resp, err := client.Chat(context.Background(), "", []Message{{Role: "user", Content: "tables?"}}, nil)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	if resp.StopReason != "tool_use" {
		t.Errorf("StopReason = %q, want tool_use (mapped from tool_calls)", resp.StopReason)
	}

	uses := resp.ToolUses()
	if len(uses) != 1 {
		t.Fatalf("ToolUses() returned %d, want 1", len(uses))
	}
	if uses[0].ID != "call_1" || uses[0].Name != "list_tables" {
		t.Errorf("ToolUse = %+v", uses[0])
	}
	if uses[0].Input["schema"] != "sales" {
		t.Errorf("arguments not decoded: Input = %v", uses[0].Input)
	}
}

func TestOpenAIChatAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(Options{APIKey: "bad", Model: "m", BaseURL: server.URL})

	_, err := client.Chat(context.Background(), "", []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("Chat() did not surface the API error")
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error %q does not carry the API body", err)
	}
}

func TestConvertToOpenAI(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "What tables exist?"},
		{Role: "assistant", Content: []interface{}{
			TextContent{Type: "text", Text: "Checking."},
			ToolUse{Type: "tool_use", ID: "call_9", Name: "list_tables", Input: map[string]interface{}{"schema": "public"}},
		}},
		{Role: "user", Content: []ToolResult{
			{Type: "tool_result", ToolUseID: "call_9", Content: "users, orders"},
		}},
	}

	converted := convertToOpenAI("be helpful", history)

	if len(converted) != 4 {
		t.Fatalf("converted %d messages, want 4 (system, user, assistant, tool)", len(converted))
	}

	if converted[0].Role != "system" {
		t.Errorf("message[0].Role = %q, want system", converted[0].Role)
	}
	if converted[1].Role != "user" || converted[1].Content != "What tables exist?" {
		t.Errorf("message[1] = %+v, want the user question", converted[1])
	}

	assistant := converted[2]
	if assistant.Role != "assistant" || assistant.Content != "Checking." {
		t.Errorf("message[2] = %+v, want assistant text", assistant)
	}
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("assistant has %d tool calls, want 1", len(assistant.ToolCalls))
	}
	if assistant.ToolCalls[0].ID != "call_9" {
		t.Errorf("tool call id = %q, want call_9", assistant.ToolCalls[0].ID)
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(assistant.ToolCalls[0].Function.Arguments), &args); err != nil {
		t.Fatalf("arguments are not a JSON string: %v", err)
	}
	if args["schema"] != "public" {
		t.Errorf("arguments = %v, want schema public", args)
	}

	toolMsg := converted[3]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "call_9" {
		t.Errorf("message[3] = %+v, want a correlated tool message", toolMsg)
	}
	if toolMsg.Content != "users, orders" {
		t.Errorf("tool message content = %q, want the result text", toolMsg.Content)
	}
}

func TestToolResultText(t *testing.T) {
	t.Run("string content", func(t *testing.T) {
		got := toolResultText(ToolResult{Content: "plain"})
		if got != "plain" {
			t.Errorf("toolResultText() = %q, want plain", got)
		}
	})

	t.Run("structured content", func(t *testing.T) {
		got := toolResultText(ToolResult{Content: map[string]interface{}{"rows": 3}})
		if !strings.Contains(got, "3") {
			t.Errorf("toolResultText() = %q, want marshaled content", got)
		}
	})
}
