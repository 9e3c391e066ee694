/*-------------------------------------------------------------------------
 *
 * sqlpilot - Terminal Chat Commands
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package chat

import (
	"fmt"
	"strings"

	"sqlpilot/internal/llm"
)

// SlashCommand represents a parsed slash command
type SlashCommand struct {
	Command string
	Args    []string
}

// ParseSlashCommand parses a slash command from user input. Input that does
// not start with "/" is not a command and returns nil.
func ParseSlashCommand(input string) *SlashCommand {
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	parts := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(parts) == 0 {
		return nil
	}

	return &SlashCommand{
		Command: strings.ToLower(parts[0]),
		Args:    parts[1:],
	}
}

// HandleSlashCommand processes a slash command. It reports whether the
// command was recognized and whether the client should exit.
func (c *Client) HandleSlashCommand(cmd *SlashCommand) (handled, quit bool) {
	if cmd == nil {
		return false, false
	}

	switch cmd.Command {
	case "help":
		c.ui.PrintHelp()
		return true, false

	case "history":
		c.printHistory()
		return true, false

	case "sql":
		if sql := c.session.LastSQL(); sql != "" {
			c.ui.PrintSQL(sql)
		} else {
			c.ui.PrintSystemMessage("No query has been executed yet.")
		}
		return true, false

	case "quit", "exit":
		return true, true

	default:
		return false, false
	}
}

// printHistory replays the conversation so far. Tool traffic carries no
// displayable text and is skipped.
func (c *Client) printHistory() {
	history := c.session.History()

	shown := 0
	for _, msg := range history {
		text := llm.ContentText(msg.Content)
		if text == "" {
			continue
		}
		switch msg.Role {
		case "user":
			fmt.Println(c.ui.colorize(ColorGreen+ColorBold, "You: ") + text)
		case "assistant":
			fmt.Println(c.ui.colorize(ColorBlue, "Assistant: ") + text)
		default:
			continue
		}
		shown++
	}

	if shown == 0 {
		c.ui.PrintSystemMessage("No conversation yet.")
	}
}
