/*-------------------------------------------------------------------------
 *
 * sqlpilot - Terminal Chat UI
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
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Color codes for terminal output
const (
	ColorReset   = "\033[0m"
	ColorRed     = "\033[31m"
	ColorGreen   = "\033[32m"
	ColorYellow  = "\033[33m"
	ColorBlue    = "\033[34m"
	ColorMagenta = "\033[35m"
	ColorCyan    = "\033[36m"
	ColorGray    = "\033[90m"
	ColorBold    = "\033[1m"
)

// KeyEscape is the raw byte the Escape key sends.
const KeyEscape = 27

// UI handles the terminal output side of the chat client.
type UI struct {
	noColor        bool
	RenderMarkdown bool
}

// NewUI creates a new UI instance
func NewUI(noColor bool, renderMarkdown bool) *UI {
	return &UI{
		noColor:        noColor,
		RenderMarkdown: renderMarkdown,
	}
}

// colorize applies color if colors are enabled
func (ui *UI) colorize(color, text string) string {
	if ui.noColor {
		return text
	}
	return color + text + ColorReset
}

// PrintWelcome prints the welcome message
// ASCII art credit: https://ascii.co.uk/art/elephant
func (ui *UI) PrintWelcome() {
	elephant := `
          _
   ______/ \-.   _           sqlpilot - talk to your database
.-/     (    o\_//           Type 'quit' or 'exit' to leave, 'help' for commands
 |  ___  \_/\---'            Press Esc to cancel a running question
 |_||  |_||
`
	fmt.Println(ui.colorize(ColorCyan, elephant))
}

// GetPrompt returns the prompt string for readline
func (ui *UI) GetPrompt() string {
	return ui.colorize(ColorGreen+ColorBold, "You: ")
}

// PrintAssistantResponse prints the assistant's response
func (ui *UI) PrintAssistantResponse(text string) {
	// Clear the thinking animation line and add blank line before response
	ui.ClearThinkingLine()
	fmt.Print("\n")

	fmt.Print(ui.colorize(ColorBlue, "Assistant: "))

	if ui.RenderMarkdown {
		var style string
		if ui.noColor {
			style = "notty"
		} else {
			style = "dark"
		}

		// Cap the render width so tables stay readable on wide terminals
		width := ui.getTerminalWidth()
		if width > 120 {
			width = 120
		}

		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithStylePath(style),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			rendered, err := r.Render(text)
			if err == nil {
				fmt.Print(rendered)
				return
			}
			// If rendering fails, fall back to plain text
		}
	}

	fmt.Print(text + "\n")
}

// PrintSQL prints the statement that produced the answer, before the answer
// itself.
func (ui *UI) PrintSQL(sql string) {
	ui.ClearThinkingLine()
	fmt.Print("\n")
	fmt.Println(ui.colorize(ColorGray, "Last executed SQL query:"))
	fmt.Println(ui.colorize(ColorCyan, "  "+strings.ReplaceAll(sql, "\n", "\n  ")))
}

// PrintSystemMessage prints a system message
func (ui *UI) PrintSystemMessage(text string) {
	fmt.Println(ui.colorize(ColorYellow, "System: ") + text)
}

// PrintError prints an error message
func (ui *UI) PrintError(text string) {
	// Clear any thinking animation line and add blank line before error
	ui.ClearThinkingLine()
	fmt.Print("\n")
	fmt.Println(ui.colorize(ColorRed, "Error: ") + text)
}

// PrintToolExecution prints a tool execution message on the same line as the
// thinking animation. For execute_query the statement itself is shown.
func (ui *UI) PrintToolExecution(toolName string, params map[string]interface{}) {
	message := fmt.Sprintf(" → Executing tool: %s", toolName)

	if toolName == "execute_query" {
		if sql, ok := params["sql"].(string); ok && sql != "" {
			message = fmt.Sprintf(" → Executing tool: %s (%s)", toolName, oneLine(sql, 60))
		}
	}

	fmt.Print(ui.colorize(ColorMagenta, message+"\n"))
}

// oneLine collapses whitespace and truncates text for inline display.
func oneLine(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-3]) + "..."
}

// PrintSeparator prints a separator line
func (ui *UI) PrintSeparator() {
	fmt.Println(ui.colorize(ColorGray, strings.Repeat("─", 80)))
}

// PostgreSQL/Elephant themed action words for animation
var elephantActions = []string{
	"Thinking with trunks",
	"Consulting the herd",
	"Stampeding through data",
	"Trumpeting queries",
	"Migrating thoughts",
	"Charging through logic",
	"Roaming the database",
	"Grazing on metadata",
	"Herding ideas",
	"Splashing in pools",
	"Foraging for answers",
	"Dusting off schemas",
	"Pondering profoundly",
	"Remembering everything",
	"Stomping bugs",
	"Tusking through code",
}

// getThinkingMaxWidth calculates the maximum width needed for thinking animation
func (ui *UI) getThinkingMaxWidth() int {
	maxWidth := 40
	for _, action := range elephantActions {
		width := len(action) + 5 // frame + space + action + "..."
		if width > maxWidth {
			maxWidth = width
		}
	}
	return maxWidth
}

// getTerminalWidth returns the maximum width for markdown rendering
func (ui *UI) getTerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		// Leave a small margin to prevent awkward wrapping at terminal edge
		if width > 2 {
			return width - 2
		}
		return width
	}
	// Default to 80 columns if we can't determine terminal width
	return 80
}

// ClearThinkingLine clears the thinking animation line
func (ui *UI) ClearThinkingLine() {
	maxWidth := ui.getThinkingMaxWidth()
	fmt.Print("\r" + strings.Repeat(" ", maxWidth) + "\r")
}

// ShowThinking displays an animated "thinking" indicator until done or ctx
// closes.
func (ui *UI) ShowThinking(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	frameIndex := 0
	actionIndex := rand.Intn(len(elephantActions))
	actionChangeCounter := 0

	maxWidth := ui.getThinkingMaxWidth()

	fmt.Print("\r" + ui.colorize(ColorCyan, frames[frameIndex]) + " " + ui.colorize(ColorGray, elephantActions[actionIndex]) + "...")

	for {
		select {
		case <-done:
			ui.ClearThinkingLine()
			return
		case <-ctx.Done():
			ui.ClearThinkingLine()
			return
		case <-ticker.C:
			frameIndex = (frameIndex + 1) % len(frames)
			actionChangeCounter++

			// Change action text every 4 ticks (2 seconds)
			if actionChangeCounter >= 4 {
				actionIndex = rand.Intn(len(elephantActions))
				actionChangeCounter = 0
			}

			// Pad to maxWidth to clear any leftover characters
			msg := ui.colorize(ColorCyan, frames[frameIndex]) + " " + ui.colorize(ColorGray, elephantActions[actionIndex]) + "..."
			padding := maxWidth - len(elephantActions[actionIndex]) - 5
			if padding > 0 {
				msg += strings.Repeat(" ", padding)
			}
			fmt.Print("\r" + msg)
		}
	}
}

// PrintHelp prints the help message
func (ui *UI) PrintHelp() {
	help := `
Available commands:
  help      - Show this help message
  quit      - Exit the chat client
  exit      - Exit the chat client
  clear     - Clear the screen

Slash commands:
  /help     - Show this help message
  /history  - Show the conversation so far
  /sql      - Show the last executed SQL query
  /quit     - Exit the chat client

History navigation:
  Up/Down   - Navigate through command history
  Ctrl+R    - Reverse search history (type to filter, Ctrl+R for next match)

Ask questions about your database naturally; the assistant explores the
schema and runs the SQL for you. Press Esc to cancel a running question.
`
	fmt.Println(ui.colorize(ColorCyan, help))
}

// ClearScreen clears the terminal screen
func (ui *UI) ClearScreen() {
	fmt.Print("\033[H\033[2J")
}
