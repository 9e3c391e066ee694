/*-------------------------------------------------------------------------
 *
 * sqlpilot - Get Foreign Keys Tool
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

// GetForeignKeysTool creates the get_foreign_keys tool
func GetForeignKeysTool(provider database.Provider) Tool {
	return Tool{
		Definition: Definition{
			Name: "get_foreign_keys",
			Description: `Get the foreign keys of one table: which of its columns reference which tables and columns.

<usecase>
Use get_foreign_keys when a question needs data from more than one table.
The declared references tell you the correct JOIN conditions instead of
guessing them from column names.
</usecase>

<next_steps>
With the join paths known, write the query and run it via execute_query.
</next_steps>`,
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"schema": map[string]interface{}{
						"type":        "string",
						"description": "Schema the table belongs to",
					},
					"table": map[string]interface{}{
						"type":        "string",
						"description": "Name of the table to inspect",
					},
				},
				Required: []string{"schema", "table"},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (Response, error) {
			schema, errResp := ValidateStringParam(args, "schema")
			if errResp != nil {
				return *errResp, nil
			}
			table, errResp := ValidateStringParam(args, "table")
			if errResp != nil {
				return *errResp, nil
			}

			keys, err := provider.GetForeignKeys(ctx, schema, table)
			if err != nil {
				return NewToolError(fmt.Sprintf("Failed to get foreign keys for %s.%s: %v", schema, table, err))
			}

			if len(keys) == 0 {
				return NewToolSuccess(fmt.Sprintf("Table %s.%s has no foreign keys.", schema, table))
			}

			payload, err := json.MarshalIndent(keys, "", "  ")
			if err != nil {
				return NewToolError(fmt.Sprintf("Failed to format foreign keys: %v", err))
			}

			return NewToolSuccess(fmt.Sprintf("Table %s.%s has %d foreign keys:\n%s",
				schema, table, len(keys), payload))
		},
	}
}
