/*-------------------------------------------------------------------------
 *
 * sqlpilot - Default Toolset
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tools

import "sqlpilot/internal/database"

// DefaultRegistry wires the full metadata and query toolset against a
// provider. This is the closed set of tools the assistant works with.
func DefaultRegistry(provider database.Provider) *Registry {
	registry := NewRegistry()
	registry.MustRegister(
		ListSchemasTool(provider),
		ListTablesTool(provider),
		GetTableSchemaTool(provider),
		GetForeignKeysTool(provider),
		ExecuteQueryTool(provider),
	)
	return registry
}
