/*-------------------------------------------------------------------------
 *
 * sqlpilot - Execute Query Tool
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
	"strings"

	"sqlpilot/internal/database"
)

// ExecuteQueryTool creates the execute_query tool
func ExecuteQueryTool(provider database.Provider) Tool {
	return Tool{
		Definition: Definition{
			Name: "execute_query",
			Description: `Execute one SQL statement against the database and return the outcome.

<usecase>
Use execute_query to run the SQL you have written once you understand the
relevant tables. Row-returning statements (SELECT, WITH, VALUES, EXPLAIN,
SHOW) come back as rows; any other statement reports how many rows it
affected.
</usecase>

<important>
- Discover the schema first; do not guess table or column names.
- If the database rejects the statement, the error message comes back to
  you. Read it, fix the SQL, and try again.
- Add a LIMIT when sampling large tables.
</important>`,
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"sql": map[string]interface{}{
						"type":        "string",
						"description": "The SQL statement to execute",
					},
				},
				Required: []string{"sql"},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (Response, error) {
			sql, errResp := ValidateStringParam(args, "sql")
			if errResp != nil {
				return *errResp, nil
			}

			result, err := provider.ExecuteQuery(ctx, sql)
			if err != nil {
				// backend and transport errors both go back to the model as text
				return NewToolError(err.Error())
			}

			if !result.HasRows() {
				return NewToolSuccess(result.Status)
			}

			payload, err := json.MarshalIndent(result.Rows, "", "  ")
			if err != nil {
				return NewToolError(fmt.Sprintf("Failed to format results: %v", err))
			}

			var sb strings.Builder
			fmt.Fprintf(&sb, "Query returned %d rows.\n", len(result.Rows))
			if len(result.Columns) > 0 {
				fmt.Fprintf(&sb, "Columns: %s\n", strings.Join(result.Columns, ", "))
			}
			sb.Write(payload)

			return NewToolSuccess(sb.String())
		},
	}
}
