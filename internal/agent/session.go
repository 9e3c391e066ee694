/*-------------------------------------------------------------------------
 *
 * sqlpilot - Conversation Session
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
	"fmt"
	"strings"
	"sync"
	"time"

	"sqlpilot/internal/llm"
	"sqlpilot/internal/logging"
	"sqlpilot/internal/metrics"
	"sqlpilot/internal/tools"

	"github.com/google/uuid"
)

// State identifies where a session currently is in the reasoning loop.
type State int

const (
	// StateIdle means the session is waiting for the next user message.
	StateIdle State = iota
	// StateReasoning means a reasoning-service call is in flight.
	StateReasoning
	// StateExecutingTools means tool calls from the current round are running.
	StateExecutingTools
	// StateResponding means the final answer is being recorded.
	StateResponding
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReasoning:
		return "reasoning"
	case StateExecutingTools:
		return "executing_tools"
	case StateResponding:
		return "responding"
	default:
		return "unknown"
	}
}

const (
	// DefaultMaxRounds bounds the reasoning/tool cycles spent on one user turn.
	DefaultMaxRounds = 16
	// DefaultToolTimeout bounds each individual tool invocation.
	DefaultToolTimeout = 30 * time.Second
)

// loopLimitAnswer is surfaced as the turn's answer when the round cap is hit.
// The session itself stays usable afterwards.
const loopLimitAnswer = "I could not finish answering within the allowed number " +
	"of reasoning steps. The question may span too many tables or require too " +
	"much exploration for a single turn. Please try again with a narrower " +
	"question, or break it into smaller pieces."

// ErrSessionBusy is returned by TryAsk when a turn is already in flight.
var ErrSessionBusy = errors.New("session is already processing a turn")

// Options tunes a session. Zero values fall back to the defaults above.
type Options struct {
	// MaxRounds caps reasoning/tool cycles per user turn.
	MaxRounds int
	// ToolTimeout is the deadline applied to each tool invocation.
	ToolTimeout time.Duration
	// SystemPrompt overrides the built-in instructions when non-empty.
	SystemPrompt string
	// OnToolCall, when set, is invoked with each requested tool call in
	// request order, before execution starts. Surfaces use it to show
	// progress while a turn is running.
	OnToolCall func(name string, args map[string]interface{})
}

// Answer is the outcome of one fully processed user turn.
type Answer struct {
	// Text is the assistant's final reply.
	Text string `json:"text"`
	// SQL is the last statement run through execute_query during the turn,
	// empty when the turn needed no query.
	SQL string `json:"sql,omitempty"`
	// Rounds counts the reasoning calls the turn consumed.
	Rounds int `json:"rounds"`
}

// Session owns one conversation: the ordered message history, the reasoning
// client, and the tool registry. A session processes one user turn at a time;
// the full history is resent to the reasoning service on every call so
// follow-up questions can reuse earlier schema lookups without re-fetching.
type Session struct {
	// ID uniquely identifies the session across surfaces and the store.
	ID string

	client   llm.Client
	registry *tools.Registry
	opts     Options
	system   string

	// turnMu serializes turns: one user message is fully resolved before
	// the next is accepted.
	turnMu sync.Mutex

	// mu guards the mutable fields below so observers can read them while
	// a turn is in flight.
	mu      sync.Mutex
	state   State
	history []llm.Message
	lastSQL string
}

// NewSession creates a session with a fresh identifier and empty history.
func NewSession(client llm.Client, registry *tools.Registry, opts Options) *Session {
	return ResumeSession(uuid.NewString(), nil, client, registry, opts)
}

// ResumeSession creates a session that continues an existing conversation,
// typically reloaded from the conversation store.
func ResumeSession(id string, history []llm.Message, client llm.Client, registry *tools.Registry, opts Options) *Session {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = DefaultToolTimeout
	}
	system := opts.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}
	return &Session{
		ID:       id,
		client:   client,
		registry: registry,
		opts:     opts,
		system:   system,
		state:    StateIdle,
		history:  append([]llm.Message(nil), history...),
	}
}

// State reports where the session currently is, safe to call concurrently
// with an in-flight turn.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastSQL returns the most recent statement run through execute_query in any
// turn of this session, empty if none has run yet.
func (s *Session) LastSQL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSQL
}

// History returns a copy of the conversation history recorded so far.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Message(nil), s.history...)
}

// Ask processes one user turn, blocking until any in-flight turn finishes.
// The returned error covers reasoning-service failures only; tool failures
// are fed back into the conversation as error results for the model to
// recover from.
func (s *Session) Ask(ctx context.Context, text string) (Answer, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	return s.processTurn(ctx, text)
}

// TryAsk behaves like Ask but fails fast with ErrSessionBusy instead of
// waiting when another turn is in flight.
func (s *Session) TryAsk(ctx context.Context, text string) (Answer, error) {
	if !s.turnMu.TryLock() {
		return Answer{}, ErrSessionBusy
	}
	defer s.turnMu.Unlock()
	return s.processTurn(ctx, text)
}

func (s *Session) processTurn(ctx context.Context, text string) (Answer, error) {
	if strings.TrimSpace(text) == "" {
		return Answer{}, errors.New("empty message")
	}

	start := time.Now()
	s.append(llm.Message{Role: "user", Content: text})
	defer s.setState(StateIdle)

	var turnSQL string
	toolCalls := 0

	for round := 1; round <= s.opts.MaxRounds; round++ {
		s.setState(StateReasoning)
		logging.Debug("reasoning round started",
			"session", s.ID, "round", round, "provider", s.client.Provider())

		resp, err := s.client.Chat(ctx, s.system, s.History(), s.registry.List())
		if err != nil {
			metrics.ObserveTurn(metrics.OutcomeError, round, time.Since(start))
			return Answer{}, fmt.Errorf("reasoning request failed: %w", err)
		}

		uses := resp.ToolUses()
		if len(uses) == 0 {
			s.setState(StateResponding)
			answer := resp.Text()
			s.append(llm.Message{Role: "assistant", Content: answer})
			s.rememberSQL(turnSQL)
			logging.Info("turn completed",
				"session", s.ID, "rounds", round, "tool_calls", toolCalls,
				"duration", time.Since(start).String())
			metrics.ObserveTurn(metrics.OutcomeAnswered, round, time.Since(start))
			return Answer{Text: answer, SQL: turnSQL, Rounds: round}, nil
		}

		// The assistant turn goes into history exactly as received so the
		// correlation IDs line up with the result turns that follow.
		s.append(llm.Message{Role: "assistant", Content: resp.Content})

		s.setState(StateExecutingTools)
		logging.Debug("executing tool calls",
			"session", s.ID, "round", round, "count", len(uses))
		if s.opts.OnToolCall != nil {
			for _, use := range uses {
				s.opts.OnToolCall(use.Name, use.Input)
			}
		}
		results := s.runToolCalls(ctx, uses)
		toolCalls += len(uses)

		if sql := executedSQL(uses); sql != "" {
			turnSQL = sql
		}

		s.append(llm.Message{Role: "user", Content: results})
	}

	// Round cap hit: answer the turn with an explanation instead of looping
	// forever. The history stays coherent, so the session remains usable.
	s.setState(StateResponding)
	s.append(llm.Message{Role: "assistant", Content: loopLimitAnswer})
	s.rememberSQL(turnSQL)
	logging.Warn("turn hit the reasoning round limit",
		"session", s.ID, "rounds", s.opts.MaxRounds, "tool_calls", toolCalls)
	metrics.ObserveTurn(metrics.OutcomeLoopLimit, s.opts.MaxRounds, time.Since(start))
	return Answer{Text: loopLimitAnswer, SQL: turnSQL, Rounds: s.opts.MaxRounds}, nil
}

// runToolCalls executes every requested call and returns results in request
// order, one result per call, even when execution completes out of order.
func (s *Session) runToolCalls(ctx context.Context, uses []llm.ToolUse) []llm.ToolResult {
	results := make([]llm.ToolResult, len(uses))
	if len(uses) == 1 {
		results[0] = s.runToolCall(ctx, uses[0])
		return results
	}

	var wg sync.WaitGroup
	for i, use := range uses {
		wg.Add(1)
		go func(i int, use llm.ToolUse) {
			defer wg.Done()
			results[i] = s.runToolCall(ctx, use)
		}(i, use)
	}
	wg.Wait()
	return results
}

func (s *Session) runToolCall(ctx context.Context, use llm.ToolUse) llm.ToolResult {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.ToolTimeout)
	defer cancel()

	resp := s.registry.Execute(callCtx, use.Name, use.Input)
	if resp.IsError {
		logging.Warn("tool call failed",
			"session", s.ID, "tool", use.Name, "error", resp.Text())
	}
	return llm.ToolResult{
		Type:      "tool_result",
		ToolUseID: use.ID,
		Content:   resp.Content,
		IsError:   resp.IsError,
	}
}

func (s *Session) append(msg llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) rememberSQL(sql string) {
	if sql == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSQL = sql
}

// executedSQL returns the statement of the last execute_query call in the
// round, so the surfaces can show which query produced the answer.
func executedSQL(uses []llm.ToolUse) string {
	sql := ""
	for _, use := range uses {
		if use.Name != "execute_query" {
			continue
		}
		if q, ok := use.Input["sql"].(string); ok && strings.TrimSpace(q) != "" {
			sql = q
		}
	}
	return sql
}
