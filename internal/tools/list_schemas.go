/*-------------------------------------------------------------------------
 *
 * sqlpilot - List Schemas Tool
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"sqlpilot/internal/database"
)

// ListSchemasTool creates the list_schemas tool
func ListSchemasTool(provider database.Provider) Tool {
	return Tool{
		Definition: Definition{
			Name: "list_schemas",
			Description: `List all schemas in the database, excluding system schemas.

<usecase>
Use list_schemas as the FIRST step of discovery when you don't yet know how
the database is organized. It tells you which namespaces exist so you can
explore the right one instead of assuming everything lives in "public".
</usecase>

<next_steps>
After finding a promising schema, call list_tables to see what it contains.
</next_steps>`,
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]interface{}{},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (Response, error) {
			schemas, err := provider.ListSchemas(ctx)
			if err != nil {
				return NewToolError(fmt.Sprintf("Failed to list schemas: %v", err))
			}

			if len(schemas) == 0 {
				return NewToolSuccess("The database has no user schemas.")
			}

			payload, err := json.MarshalIndent(schemas, "", "  ")
			if err != nil {
				return NewToolError(fmt.Sprintf("Failed to format schemas: %v", err))
			}

			return NewToolSuccess(fmt.Sprintf("Found %d schemas:\n%s", len(schemas), payload))
		},
	}
}
