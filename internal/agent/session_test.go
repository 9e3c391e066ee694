/*-------------------------------------------------------------------------
 *
 * sqlpilot - Conversation Session Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"sqlpilot/internal/llm"
	"sqlpilot/internal/tools"
)

type chatCall struct {
	system   string
	messages []llm.Message
	toolset  []tools.Definition
}

type step struct {
	resp llm.Response
	err  error
}

// scriptedClient returns canned responses in order and records every call.
type scriptedClient struct {
	mu    sync.Mutex
	steps []step
	calls []chatCall
	gate  chan struct{} // when set, Chat blocks until the gate closes
}

func (c *scriptedClient) Chat(ctx context.Context, system string, messages []llm.Message, toolset []tools.Definition) (llm.Response, error) {
	c.mu.Lock()
	c.calls = append(c.calls, chatCall{
		system:   system,
		messages: append([]llm.Message(nil), messages...),
		toolset:  toolset,
	})
	if len(c.steps) == 0 {
		c.mu.Unlock()
		return llm.Response{}, errors.New("scripted client ran out of responses")
	}
	next := c.steps[0]
	c.steps = c.steps[1:]
	gate := c.gate
	c.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return next.resp, next.err
}

func (c *scriptedClient) Provider() string { return "scripted" }

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *scriptedClient) call(i int) chatCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[i]
}

func textResponse(text string) llm.Response {
	return llm.Response{
		Content:    []interface{}{llm.TextContent{Type: "text", Text: text}},
		StopReason: "end_turn",
	}
}

func toolResponse(uses ...llm.ToolUse) llm.Response {
	content := make([]interface{}, 0, len(uses))
	for _, u := range uses {
		content = append(content, u)
	}
	return llm.Response{Content: content, StopReason: "tool_use"}
}

func toolUse(id, name string, input map[string]interface{}) llm.ToolUse {
	if input == nil {
		input = map[string]interface{}{}
	}
	return llm.ToolUse{Type: "tool_use", ID: id, Name: name, Input: input}
}

func repeat(resp llm.Response, n int) []step {
	steps := make([]step, n)
	for i := range steps {
		steps[i] = step{resp: resp}
	}
	return steps
}

func testRegistry(t *testing.T, handlers map[string]tools.Handler) *tools.Registry {
	t.Helper()
	registry := tools.NewRegistry()
	for name, handler := range handlers {
		err := registry.Register(tools.Tool{
			Definition: tools.Definition{
				Name:        name,
				Description: "test tool",
				InputSchema: tools.InputSchema{Type: "object", Properties: map[string]interface{}{}},
			},
			Handler: handler,
		})
		if err != nil {
			t.Fatalf("Register(%s) error: %v", name, err)
		}
	}
	return registry
}

// resultText flattens a tool result recorded in history back into text.
func resultText(t *testing.T, result llm.ToolResult) string {
	t.Helper()
	items, ok := result.Content.([]tools.ContentItem)
	if !ok {
		t.Fatalf("tool result content is %T, want []tools.ContentItem", result.Content)
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, item.Text)
	}
	return strings.Join(parts, "\n")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAskAnswersDirectly(t *testing.T) {
	client := &scriptedClient{steps: []step{{resp: textResponse("The database has 3 schemas.")}}}
	session := NewSession(client, testRegistry(t, nil), Options{})

	answer, err := session.Ask(context.Background(), "How many schemas are there?")
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if answer.Text != "The database has 3 schemas." {
		t.Errorf("answer = %q", answer.Text)
	}
	if answer.Rounds != 1 {
		t.Errorf("Rounds = %d, want 1", answer.Rounds)
	}
	if answer.SQL != "" {
		t.Errorf("SQL = %q, want empty for a no-tool turn", answer.SQL)
	}
	if got := session.State(); got != StateIdle {
		t.Errorf("State() after turn = %v, want idle", got)
	}

	history := session.History()
	if len(history) != 2 {
		t.Fatalf("history has %d messages, want user + assistant", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "assistant" {
		t.Errorf("history roles = %s, %s", history[0].Role, history[1].Role)
	}
}

func TestAskRunsToolRound(t *testing.T) {
	var gotArgs map[string]interface{}
	registry := testRegistry(t, map[string]tools.Handler{
		"list_tables": func(ctx context.Context, args map[string]interface{}) (tools.Response, error) {
			gotArgs = args
			return tools.NewToolSuccess("users, orders")
		},
	})
	client := &scriptedClient{steps: []step{
		{resp: toolResponse(toolUse("tu_1", "list_tables", map[string]interface{}{"schema": "public"}))},
		{resp: textResponse("There are 2 tables.")},
	}}
	session := NewSession(client, registry, Options{})

	answer, err := session.Ask(context.Background(), "What tables exist?")
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if answer.Text != "There are 2 tables." {
		t.Errorf("answer = %q", answer.Text)
	}
	if answer.Rounds != 2 {
		t.Errorf("Rounds = %d, want 2", answer.Rounds)
	}
	if gotArgs["schema"] != "public" {
		t.Errorf("handler args = %v, want the requested schema", gotArgs)
	}

	// The second reasoning call must carry the assistant's tool turn and
	// exactly one correlated result turn.
	second := client.call(1)
	if len(second.messages) != 3 {
		t.Fatalf("second call got %d messages, want 3", len(second.messages))
	}
	if second.messages[1].Role != "assistant" {
		t.Errorf("messages[1].Role = %q, want assistant", second.messages[1].Role)
	}
	results, ok := second.messages[2].Content.([]llm.ToolResult)
	if !ok {
		t.Fatalf("messages[2].Content is %T, want []llm.ToolResult", second.messages[2].Content)
	}
	if len(results) != 1 {
		t.Fatalf("got %d tool results, want 1", len(results))
	}
	if results[0].ToolUseID != "tu_1" {
		t.Errorf("ToolUseID = %q, want tu_1", results[0].ToolUseID)
	}
	if results[0].IsError {
		t.Errorf("result marked as error: %s", resultText(t, results[0]))
	}
	if got := resultText(t, results[0]); got != "users, orders" {
		t.Errorf("result text = %q", got)
	}
}

func TestAskResultOrderMatchesRequestOrder(t *testing.T) {
	// Handlers complete in reverse request order; the recorded results must
	// still follow the request order.
	delays := map[string]time.Duration{"tool_a": 50 * time.Millisecond, "tool_b": 25 * time.Millisecond, "tool_c": 0}
	handlers := map[string]tools.Handler{}
	for name, delay := range delays {
		handlers[name] = func(ctx context.Context, args map[string]interface{}) (tools.Response, error) {
			time.Sleep(delay)
			return tools.NewToolSuccess("done: " + name)
		}
	}
	client := &scriptedClient{steps: []step{
		{resp: toolResponse(
			toolUse("tu_a", "tool_a", nil),
			toolUse("tu_b", "tool_b", nil),
			toolUse("tu_c", "tool_c", nil),
		)},
		{resp: textResponse("done")},
	}}
	session := NewSession(client, testRegistry(t, handlers), Options{})

	if _, err := session.Ask(context.Background(), "run all three"); err != nil {
		t.Fatalf("Ask() error: %v", err)
	}

	second := client.call(1)
	results, ok := second.messages[2].Content.([]llm.ToolResult)
	if !ok {
		t.Fatalf("messages[2].Content is %T, want []llm.ToolResult", second.messages[2].Content)
	}
	if len(results) != 3 {
		t.Fatalf("got %d tool results, want one per call", len(results))
	}
	wantOrder := []string{"tu_a", "tu_b", "tu_c"}
	for i, want := range wantOrder {
		if results[i].ToolUseID != want {
			t.Errorf("results[%d].ToolUseID = %q, want %q", i, results[i].ToolUseID, want)
		}
	}
}

func TestAskNotifiesToolCallsInRequestOrder(t *testing.T) {
	handlers := map[string]tools.Handler{}
	for _, name := range []string{"tool_a", "tool_b"} {
		handlers[name] = func(ctx context.Context, args map[string]interface{}) (tools.Response, error) {
			return tools.NewToolSuccess("done")
		}
	}
	client := &scriptedClient{steps: []step{
		{resp: toolResponse(toolUse("tu_a", "tool_a", nil), toolUse("tu_b", "tool_b", nil))},
		{resp: toolResponse(toolUse("tu_c", "tool_a", nil))},
		{resp: textResponse("done")},
	}}

	var notified []string
	session := NewSession(client, testRegistry(t, handlers), Options{
		OnToolCall: func(name string, _ map[string]interface{}) { notified = append(notified, name) },
	})

	if _, err := session.Ask(context.Background(), "run the tools"); err != nil {
		t.Fatalf("Ask() error: %v", err)
	}

	want := []string{"tool_a", "tool_b", "tool_a"}
	if len(notified) != len(want) {
		t.Fatalf("notified %d times (%v), want %d", len(notified), notified, len(want))
	}
	for i := range want {
		if notified[i] != want[i] {
			t.Errorf("notified[%d] = %q, want %q", i, notified[i], want[i])
		}
	}
}

func TestAskStopsAtRoundLimit(t *testing.T) {
	registry := testRegistry(t, map[string]tools.Handler{
		"list_schemas": func(ctx context.Context, args map[string]interface{}) (tools.Response, error) {
			return tools.NewToolSuccess("public")
		},
	})
	// A pathological model that asks for another tool call every round.
	client := &scriptedClient{steps: repeat(toolResponse(toolUse("tu_x", "list_schemas", nil)), 10)}
	session := NewSession(client, registry, Options{MaxRounds: 3})

	answer, err := session.Ask(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if client.callCount() != 3 {
		t.Errorf("reasoning calls = %d, want exactly the cap", client.callCount())
	}
	if !strings.Contains(answer.Text, "reasoning steps") {
		t.Errorf("limit answer = %q, want an explanation", answer.Text)
	}
	if answer.Rounds != 3 {
		t.Errorf("Rounds = %d, want 3", answer.Rounds)
	}
	if got := session.State(); got != StateIdle {
		t.Errorf("State() = %v, want idle after the capped turn", got)
	}

	// The session must survive the capped turn.
	client.mu.Lock()
	client.steps = []step{{resp: textResponse("Recovered.")}}
	client.mu.Unlock()
	followUp, err := session.Ask(context.Background(), "are you still there?")
	if err != nil {
		t.Fatalf("follow-up Ask() error: %v", err)
	}
	if followUp.Text != "Recovered." {
		t.Errorf("follow-up answer = %q", followUp.Text)
	}
}

func TestAskReportsExecutedSQL(t *testing.T) {
	registry := testRegistry(t, map[string]tools.Handler{
		"execute_query": func(ctx context.Context, args map[string]interface{}) (tools.Response, error) {
			return tools.NewToolSuccess("Query returned 1 rows.")
		},
	})
	client := &scriptedClient{steps: []step{
		{resp: toolResponse(toolUse("tu_1", "execute_query", map[string]interface{}{"sql": "SELECT count(*) FROM users"}))},
		{resp: toolResponse(toolUse("tu_2", "execute_query", map[string]interface{}{"sql": "SELECT count(*) FROM orders"}))},
		{resp: textResponse("Users: 10, orders: 20.")},
	}}
	session := NewSession(client, registry, Options{})

	answer, err := session.Ask(context.Background(), "how many users and orders?")
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if answer.SQL != "SELECT count(*) FROM orders" {
		t.Errorf("SQL = %q, want the last executed statement", answer.SQL)
	}
	if got := session.LastSQL(); got != "SELECT count(*) FROM orders" {
		t.Errorf("LastSQL() = %q", got)
	}
}

func TestAskResendsFullHistory(t *testing.T) {
	registry := testRegistry(t, map[string]tools.Handler{
		"get_table_schema": func(ctx context.Context, args map[string]interface{}) (tools.Response, error) {
			return tools.NewToolSuccess("id integer, name text")
		},
	})
	client := &scriptedClient{steps: []step{
		{resp: toolResponse(toolUse("tu_1", "get_table_schema", map[string]interface{}{"schema": "public", "table": "users"}))},
		{resp: textResponse("users has 2 columns.")},
		{resp: textResponse("Both columns are non-null.")},
	}}
	session := NewSession(client, registry, Options{})

	if _, err := session.Ask(context.Background(), "describe users"); err != nil {
		t.Fatalf("first Ask() error: %v", err)
	}
	if _, err := session.Ask(context.Background(), "which of those columns are nullable?"); err != nil {
		t.Fatalf("second Ask() error: %v", err)
	}

	// Third reasoning call: the follow-up question on top of the complete
	// first turn, tool turns included, nothing trimmed.
	third := client.call(2)
	if len(third.messages) != 5 {
		t.Fatalf("follow-up call got %d messages, want all 5", len(third.messages))
	}
	if third.messages[0].Content != "describe users" {
		t.Errorf("messages[0] = %v, want the first question", third.messages[0].Content)
	}
	if _, ok := third.messages[1].Content.([]interface{}); !ok {
		t.Errorf("messages[1].Content is %T, want the assistant tool turn", third.messages[1].Content)
	}
	if _, ok := third.messages[2].Content.([]llm.ToolResult); !ok {
		t.Errorf("messages[2].Content is %T, want the tool results", third.messages[2].Content)
	}
	if third.messages[4].Content != "which of those columns are nullable?" {
		t.Errorf("messages[4] = %v, want the follow-up question", third.messages[4].Content)
	}

	// Every reasoning call carries the same instructions and tool schemas.
	first := client.call(0)
	if first.system == "" || first.system != third.system {
		t.Errorf("system prompt not resent consistently")
	}
	if len(third.toolset) != 1 || third.toolset[0].Name != "get_table_schema" {
		t.Errorf("toolset = %v, want the registered definitions", third.toolset)
	}
}

func TestAskFeedsToolErrorsBack(t *testing.T) {
	registry := testRegistry(t, map[string]tools.Handler{
		"execute_query": func(ctx context.Context, args map[string]interface{}) (tools.Response, error) {
			return tools.NewToolError(`query failed: relation "userz" does not exist`)
		},
	})
	client := &scriptedClient{steps: []step{
		{resp: toolResponse(toolUse("tu_1", "execute_query", map[string]interface{}{"sql": "SELECT * FROM userz"}))},
		{resp: textResponse("That table does not exist.")},
	}}
	session := NewSession(client, registry, Options{})

	answer, err := session.Ask(context.Background(), "select from userz")
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if answer.Text != "That table does not exist." {
		t.Errorf("answer = %q", answer.Text)
	}

	second := client.call(1)
	results := second.messages[2].Content.([]llm.ToolResult)
	if !results[0].IsError {
		t.Error("tool failure was not marked as an error result")
	}
	if got := resultText(t, results[0]); !strings.Contains(got, "does not exist") {
		t.Errorf("error result text = %q, want the backend message", got)
	}
}

func TestAskSurfacesReasoningFailure(t *testing.T) {
	client := &scriptedClient{steps: []step{{err: errors.New("API error 500: upstream unavailable")}}}
	session := NewSession(client, testRegistry(t, nil), Options{})

	_, err := session.Ask(context.Background(), "hello?")
	if err == nil {
		t.Fatal("Ask() did not surface the reasoning failure")
	}
	if !strings.Contains(err.Error(), "upstream unavailable") {
		t.Errorf("error = %v, want the API failure", err)
	}
	if got := session.State(); got != StateIdle {
		t.Errorf("State() = %v, want idle after the failed turn", got)
	}
}

func TestAskRejectsEmptyMessage(t *testing.T) {
	client := &scriptedClient{}
	session := NewSession(client, testRegistry(t, nil), Options{})

	if _, err := session.Ask(context.Background(), "   "); err == nil {
		t.Error("Ask() accepted a blank message")
	}
	if client.callCount() != 0 {
		t.Errorf("reasoning calls = %d, want none for a blank message", client.callCount())
	}
	if len(session.History()) != 0 {
		t.Error("blank message was appended to history")
	}
}

func TestTryAskWhileBusy(t *testing.T) {
	gate := make(chan struct{})
	client := &scriptedClient{
		steps: []step{{resp: textResponse("first")}, {resp: textResponse("second")}},
		gate:  gate,
	}
	session := NewSession(client, testRegistry(t, nil), Options{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := session.Ask(context.Background(), "slow question"); err != nil {
			t.Errorf("Ask() error: %v", err)
		}
	}()

	waitFor(t, "the first turn to reach the reasoning call", func() bool {
		return client.callCount() == 1
	})

	if _, err := session.TryAsk(context.Background(), "impatient question"); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("TryAsk() error = %v, want ErrSessionBusy", err)
	}

	close(gate)
	<-done

	answer, err := session.TryAsk(context.Background(), "free again?")
	if err != nil {
		t.Fatalf("TryAsk() after release error: %v", err)
	}
	if answer.Text != "second" {
		t.Errorf("answer = %q", answer.Text)
	}
}

func TestAskAppliesToolTimeout(t *testing.T) {
	registry := testRegistry(t, map[string]tools.Handler{
		"slow_tool": func(ctx context.Context, args map[string]interface{}) (tools.Response, error) {
			select {
			case <-ctx.Done():
				return tools.NewToolError("database call canceled: " + ctx.Err().Error())
			case <-time.After(500 * time.Millisecond):
				return tools.NewToolSuccess("finished")
			}
		},
	})
	client := &scriptedClient{steps: []step{
		{resp: toolResponse(toolUse("tu_1", "slow_tool", nil))},
		{resp: textResponse("The lookup timed out.")},
	}}
	session := NewSession(client, registry, Options{ToolTimeout: 25 * time.Millisecond})

	answer, err := session.Ask(context.Background(), "take your time")
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if answer.Text != "The lookup timed out." {
		t.Errorf("answer = %q", answer.Text)
	}

	second := client.call(1)
	results := second.messages[2].Content.([]llm.ToolResult)
	if !results[0].IsError {
		t.Error("timed-out tool call was not marked as an error result")
	}
	if got := resultText(t, results[0]); !strings.Contains(got, "deadline") {
		t.Errorf("result text = %q, want the deadline error", got)
	}
}

func TestNewSessionDefaults(t *testing.T) {
	a := NewSession(&scriptedClient{}, testRegistry(t, nil), Options{})
	b := NewSession(&scriptedClient{}, testRegistry(t, nil), Options{})

	if a.ID == "" || b.ID == "" {
		t.Fatal("sessions created without identifiers")
	}
	if a.ID == b.ID {
		t.Error("two sessions share an identifier")
	}
	if a.State() != StateIdle {
		t.Errorf("new session state = %v, want idle", a.State())
	}
	if a.opts.MaxRounds != DefaultMaxRounds {
		t.Errorf("MaxRounds = %d, want default", a.opts.MaxRounds)
	}
	if a.opts.ToolTimeout != DefaultToolTimeout {
		t.Errorf("ToolTimeout = %v, want default", a.opts.ToolTimeout)
	}
}

func TestResumeSession(t *testing.T) {
	prior := []llm.Message{
		{Role: "user", Content: "describe users"},
		{Role: "assistant", Content: "users has 2 columns."},
	}
	client := &scriptedClient{steps: []step{{resp: textResponse("Still 2.")}}}
	session := ResumeSession("sess-42", prior, client, testRegistry(t, nil), Options{})

	if session.ID != "sess-42" {
		t.Errorf("ID = %q, want the resumed identifier", session.ID)
	}
	if _, err := session.Ask(context.Background(), "and now?"); err != nil {
		t.Fatalf("Ask() error: %v", err)
	}

	call := client.call(0)
	if len(call.messages) != 3 {
		t.Fatalf("reasoning call got %d messages, want prior history + new question", len(call.messages))
	}
	if call.messages[0].Content != "describe users" {
		t.Errorf("messages[0] = %v, want the restored turn", call.messages[0].Content)
	}
}

func TestStateString(t *testing.T) {
	cases := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateReasoning, "reasoning"},
		{StateExecutingTools, "executing_tools"},
		{StateResponding, "responding"},
		{State(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}

func TestExecutedSQL(t *testing.T) {
	cases := []struct {
		name string
		uses []llm.ToolUse
		want string
	}{
		{
			name: "no query calls",
			uses: []llm.ToolUse{toolUse("1", "list_schemas", nil)},
			want: "",
		},
		{
			name: "single query",
			uses: []llm.ToolUse{toolUse("1", "execute_query", map[string]interface{}{"sql": "SELECT 1"})},
			want: "SELECT 1",
		},
		{
			name: "last query wins",
			uses: []llm.ToolUse{
				toolUse("1", "execute_query", map[string]interface{}{"sql": "SELECT 1"}),
				toolUse("2", "list_tables", map[string]interface{}{"schema": "public"}),
				toolUse("3", "execute_query", map[string]interface{}{"sql": "SELECT 2"}),
			},
			want: "SELECT 2",
		},
		{
			name: "non-string argument ignored",
			uses: []llm.ToolUse{toolUse("1", "execute_query", map[string]interface{}{"sql": 7})},
			want: "",
		},
		{
			name: "blank argument ignored",
			uses: []llm.ToolUse{toolUse("1", "execute_query", map[string]interface{}{"sql": "  "})},
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := executedSQL(tc.uses); got != tc.want {
				t.Errorf("executedSQL() = %q, want %q", got, tc.want)
			}
		})
	}
}
