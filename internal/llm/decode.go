/*-------------------------------------------------------------------------
 *
 * sqlpilot - Stored Message Decoding
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"encoding/json"

	"sqlpilot/internal/tools"
)

// DecodeContent revives a stored message content value into the typed form
// the clients work with: a plain string, or a block slice of TextContent,
// ToolUse, and ToolResult values. Blocks with an unrecognized type survive as
// raw maps so nothing stored is ever dropped.
func DecodeContent(raw json.RawMessage) (interface{}, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	blocks := make([]interface{}, 0, len(items))
	for _, item := range items {
		block, err := decodeBlock(item)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func decodeBlock(raw json.RawMessage) (interface{}, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case "text":
		var block TextContent
		if err := json.Unmarshal(raw, &block); err != nil {
			return nil, err
		}
		return block, nil

	case "tool_use":
		var block ToolUse
		if err := json.Unmarshal(raw, &block); err != nil {
			return nil, err
		}
		if block.Input == nil {
			block.Input = map[string]interface{}{}
		}
		return block, nil

	case "tool_result":
		var block struct {
			Type      string          `json:"type"`
			ToolUseID string          `json:"tool_use_id"`
			Content   json.RawMessage `json:"content"`
			IsError   bool            `json:"is_error,omitempty"`
		}
		if err := json.Unmarshal(raw, &block); err != nil {
			return nil, err
		}
		return ToolResult{
			Type:      block.Type,
			ToolUseID: block.ToolUseID,
			Content:   decodeResultContent(block.Content),
			IsError:   block.IsError,
		}, nil

	default:
		var generic map[string]interface{}
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, err
		}
		return generic, nil
	}
}

// decodeResultContent restores a tool result's content. Registry responses
// store it as content-item lists; plain strings and anything else pass
// through as decoded JSON.
func decodeResultContent(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return ""
	}

	var items []tools.ContentItem
	if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 && items[0].Type != "" {
		return items
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return string(raw)
	}
	return generic
}
