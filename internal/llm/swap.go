/*-------------------------------------------------------------------------
 *
 * sqlpilot - Swappable Reasoning Client
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"context"
	"sync/atomic"

	"sqlpilot/internal/tools"
)

// Swappable is a Client whose underlying implementation can be replaced
// while requests are in flight. Configuration reloads swap in a client built
// from the new settings and every session sharing the wrapper picks it up on
// its next reasoning call.
type Swappable struct {
	current atomic.Pointer[Client]
}

var _ Client = (*Swappable)(nil)

// NewSwappable wraps an initial client.
func NewSwappable(client Client) *Swappable {
	s := &Swappable{}
	s.current.Store(&client)
	return s
}

// Swap replaces the underlying client. In-flight calls finish on the client
// they started with.
func (s *Swappable) Swap(client Client) {
	s.current.Store(&client)
}

// Chat forwards to the current client.
func (s *Swappable) Chat(ctx context.Context, system string, messages []Message, toolset []tools.Definition) (Response, error) {
	return (*s.current.Load()).Chat(ctx, system, messages, toolset)
}

// Provider reports the current client's provider name.
func (s *Swappable) Provider() string {
	return (*s.current.Load()).Provider()
}
