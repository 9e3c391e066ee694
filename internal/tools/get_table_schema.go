/*-------------------------------------------------------------------------
 *
 * sqlpilot - Get Table Schema Tool
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

// GetTableSchemaTool creates the get_table_schema tool
func GetTableSchemaTool(provider database.Provider) Tool {
	return Tool{
		Definition: Definition{
			Name: "get_table_schema",
			Description: `Get the columns of one table: names, data types, nullability, and defaults, in declaration order.

<usecase>
Use get_table_schema before writing SQL against a table you haven't seen in
this conversation. Knowing the exact column names and types prevents failed
queries and wrong type casts.
</usecase>

<next_steps>
If the question spans several tables, call get_foreign_keys to learn how
they join. If a column's values are unclear, run a small sample query such
as SELECT DISTINCT column FROM table LIMIT 10 via execute_query.
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
						"description": "Name of the table to describe",
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

			columns, err := provider.GetTableSchema(ctx, schema, table)
			if err != nil {
				return NewToolError(fmt.Sprintf("Failed to describe %s.%s: %v", schema, table, err))
			}

			if len(columns) == 0 {
				return NewToolSuccess(fmt.Sprintf("Table %s.%s was not found or has no columns.", schema, table))
			}

			payload, err := json.MarshalIndent(columns, "", "  ")
			if err != nil {
				return NewToolError(fmt.Sprintf("Failed to format columns: %v", err))
			}

			return NewToolSuccess(fmt.Sprintf("Table %s.%s has %d columns (in declaration order):\n%s",
				schema, table, len(columns), payload))
		},
	}
}
