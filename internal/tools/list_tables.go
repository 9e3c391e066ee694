/*-------------------------------------------------------------------------
 *
 * sqlpilot - List Tables Tool
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

// ListTablesTool creates the list_tables tool
func ListTablesTool(provider database.Provider) Tool {
	return Tool{
		Definition: Definition{
			Name: "list_tables",
			Description: `List the tables and views in one schema.

<usecase>
Use list_tables after list_schemas to see what a schema contains. Table
names alone are often enough to spot where the data for a question lives.
</usecase>

<next_steps>
Call get_table_schema on a table of interest to learn its columns before
writing SQL against it.
</next_steps>`,
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"schema": map[string]interface{}{
						"type":        "string",
						"description": "Name of the schema to list tables from, e.g. \"public\"",
					},
				},
				Required: []string{"schema"},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (Response, error) {
			schema, errResp := ValidateStringParam(args, "schema")
			if errResp != nil {
				return *errResp, nil
			}

			tables, err := provider.ListTables(ctx, schema)
			if err != nil {
				return NewToolError(fmt.Sprintf("Failed to list tables in schema %q: %v", schema, err))
			}

			if len(tables) == 0 {
				return NewToolSuccess(fmt.Sprintf("Schema %q contains no tables. It may not exist or may be empty.", schema))
			}

			payload, err := json.MarshalIndent(tables, "", "  ")
			if err != nil {
				return NewToolError(fmt.Sprintf("Failed to format tables: %v", err))
			}

			return NewToolSuccess(fmt.Sprintf("Schema %q contains %d tables:\n%s", schema, len(tables), payload))
		},
	}
}
