/*-------------------------------------------------------------------------
 *
 * sqlpilot - Reasoning Client Factory
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"fmt"
	"strings"
)

// NewClient builds a reasoning client for the named provider.
func NewClient(provider string, opts Options) (Client, error) {
	switch strings.ToLower(provider) {
	case "anthropic":
		return NewAnthropicClient(opts), nil
	case "openai":
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown reasoning provider %q (supported: anthropic, openai)", provider)
	}
}
