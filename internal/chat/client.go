/*-------------------------------------------------------------------------
 *
 * sqlpilot - Terminal Chat Client
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package chat

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sqlpilot/internal/agent"
	"sqlpilot/internal/llm"
	"sqlpilot/internal/tools"

	"github.com/chzyer/readline"
)

// Options configures the terminal chat client.
type Options struct {
	// Provider and Model are shown in the connection banner.
	Provider string
	Model    string
	// Database is the display name of the connected database.
	Database string
	// HistoryFile stores readline history. Empty uses ~/.sqlpilot_history.
	HistoryFile string

	NoColor        bool
	RenderMarkdown bool

	// Agent configures the conversation loop behind the prompt.
	Agent agent.Options
}

// Client is the interactive terminal chat client. It owns one conversation
// for the lifetime of the process.
type Client struct {
	ui      *UI
	session *agent.Session
	opts    Options

	// Thinking animation state, shared between processQuery and the
	// tool-call callback that pauses the animation to print progress.
	mu           sync.Mutex
	thinkingCtx  context.Context
	thinkingDone chan struct{}
}

// NewClient creates a chat client on top of a reasoning client and a tool
// registry.
func NewClient(client llm.Client, registry *tools.Registry, opts Options) *Client {
	c := &Client{
		ui:   NewUI(opts.NoColor, opts.RenderMarkdown),
		opts: opts,
	}

	agentOpts := opts.Agent
	agentOpts.OnToolCall = c.notifyToolCall
	c.session = agent.NewSession(client, registry, agentOpts)

	return c
}

// Run prints the welcome banner and enters the chat loop. It returns when the
// user exits or ctx is canceled.
func (c *Client) Run(ctx context.Context) error {
	c.ui.PrintWelcome()
	if c.opts.Provider != "" {
		c.ui.PrintSystemMessage(fmt.Sprintf("Using LLM: %s (%s)", c.opts.Provider, c.opts.Model))
	}
	if c.opts.Database != "" {
		c.ui.PrintSystemMessage(fmt.Sprintf("Database: %s", c.opts.Database))
	}
	c.ui.PrintSeparator()

	return c.chatLoop(ctx)
}

// chatLoop runs the interactive chat loop
func (c *Client) chatLoop(ctx context.Context) error {
	historyFile := c.opts.HistoryFile
	if historyFile == "" {
		historyFile = defaultHistoryFile()
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 c.ui.GetPrompt(),
		HistoryFile:            historyFile,
		HistoryLimit:           1000,
		DisableAutoSaveHistory: false,
		InterruptPrompt:        "^C",
		EOFPrompt:              "exit",
		HistorySearchFold:      true, // Enable case-insensitive history search
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	// Closing readline forces Readline() to return once the context dies
	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	for {
		// This blocks until user provides input
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF || ctx.Err() != nil {
				fmt.Println()
				c.ui.PrintSystemMessage("Goodbye!")
				return nil
			}
			return fmt.Errorf("readline error: %w", err)
		}

		userInput := strings.TrimSpace(line)
		if userInput == "" {
			continue
		}

		switch strings.ToLower(userInput) {
		case "quit", "exit":
			c.ui.PrintSystemMessage("Goodbye!")
			return nil
		case "help":
			c.ui.PrintHelp()
			continue
		case "clear":
			c.ui.ClearScreen()
			c.ui.PrintWelcome()
			continue
		}

		if cmd := ParseSlashCommand(userInput); cmd != nil {
			handled, quit := c.HandleSlashCommand(cmd)
			if quit {
				c.ui.PrintSystemMessage("Goodbye!")
				return nil
			}
			if !handled {
				c.ui.PrintError(fmt.Sprintf("Unknown command: /%s (type /help for available commands)", cmd.Command))
			}
			continue
		}

		// Everything else goes to the assistant
		if err := c.processQuery(ctx, userInput); err != nil {
			if ctx.Err() != nil {
				fmt.Println()
				c.ui.PrintSystemMessage("Goodbye!")
				return nil
			}
			c.ui.PrintError(err.Error())
		}

		c.ui.PrintSeparator()
		// Readline will automatically display the prompt on the next iteration
	}
}

// processQuery sends one question through the conversation and prints the
// answer. A standalone Escape key press cancels the question without leaving
// the client.
func (c *Client) processQuery(ctx context.Context, query string) error {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	escDone := make(chan struct{})
	escStopped := make(chan struct{})
	go func() {
		defer close(escStopped)
		ListenForEscape(turnCtx, escDone, cancel)
	}()

	c.startThinking(turnCtx)
	answer, err := c.session.Ask(turnCtx, query)
	c.stopThinking()

	// Wait for the key listener to restore the terminal before printing
	close(escDone)
	<-escStopped

	if err != nil {
		if turnCtx.Err() != nil && ctx.Err() == nil {
			fmt.Println()
			c.ui.PrintSystemMessage("Request canceled.")
			return nil
		}
		return err
	}

	if answer.SQL != "" {
		c.ui.PrintSQL(answer.SQL)
	}
	c.ui.PrintAssistantResponse(answer.Text)

	return nil
}

// startThinking launches the animation goroutine for the current turn.
func (c *Client) startThinking(ctx context.Context) {
	c.mu.Lock()
	c.thinkingCtx = ctx
	done := make(chan struct{})
	c.thinkingDone = done
	c.mu.Unlock()

	go c.ui.ShowThinking(ctx, done)
}

// stopThinking halts the animation, if running, and waits for its line to
// clear.
func (c *Client) stopThinking() {
	c.mu.Lock()
	done := c.thinkingDone
	c.thinkingDone = nil
	c.mu.Unlock()

	if done == nil {
		return
	}
	close(done)
	// Give the animation goroutine time to clear the line
	time.Sleep(50 * time.Millisecond)
}

// notifyToolCall pauses the animation, reports the tool call, and resumes.
// It runs on the same goroutine as Ask, between startThinking and
// stopThinking.
func (c *Client) notifyToolCall(name string, args map[string]interface{}) {
	c.stopThinking()
	c.ui.PrintToolExecution(name, args)

	c.mu.Lock()
	ctx := c.thinkingCtx
	c.mu.Unlock()
	if ctx != nil && ctx.Err() == nil {
		c.startThinking(ctx)
	}
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".sqlpilot_history")
	}
	return filepath.Join(home, ".sqlpilot_history")
}
