/*-------------------------------------------------------------------------
 *
 * sqlpilot - Execute Query Tool Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sqlpilot/internal/database"
)

func TestExecuteQueryToolRows(t *testing.T) {
	var gotSQL string
	provider := &fakeProvider{
		executeQuery: func(ctx context.Context, sql string) (*database.QueryResult, error) {
			gotSQL = sql
			return &database.QueryResult{
				Columns: []string{"name", "total"},
				Rows: []map[string]interface{}{
					{"name": "Ada", "total": 12},
					{"name": "Grace", "total": 9},
				},
			}, nil
		},
	}

	tool := ExecuteQueryTool(provider)
	resp, err := tool.Handler(context.Background(), map[string]interface{}{
		"sql": "SELECT name, total FROM sales.totals",
	})
	if err != nil {
		t.Fatalf("Handler() error: %v", err)
	}
	if resp.IsError {
		t.Fatalf("Handler() returned an error response: %s", resp.Text())
	}

	if gotSQL != "SELECT name, total FROM sales.totals" {
		t.Errorf("provider received %q, want the statement unchanged", gotSQL)
	}

	text := resp.Text()
	if !strings.Contains(text, "2 rows") {
		t.Errorf("response %q does not report the row count", text)
	}
	if !strings.Contains(text, "Columns: name, total") {
		t.Errorf("response %q does not carry the column order", text)
	}
	if !strings.Contains(text, "Ada") || !strings.Contains(text, "Grace") {
		t.Errorf("response %q does not carry the rows", text)
	}
}

func TestExecuteQueryToolStatus(t *testing.T) {
	provider := &fakeProvider{
		executeQuery: func(ctx context.Context, sql string) (*database.QueryResult, error) {
			return &database.QueryResult{Status: "Query executed successfully. Rows affected: 3"}, nil
		},
	}

	resp, err := ExecuteQueryTool(provider).Handler(context.Background(), map[string]interface{}{
		"sql": "UPDATE t SET x = 1",
	})
	if err != nil {
		t.Fatalf("Handler() error: %v", err)
	}
	if resp.IsError {
		t.Fatalf("Handler() returned an error response: %s", resp.Text())
	}
	if !strings.Contains(resp.Text(), "Rows affected: 3") {
		t.Errorf("response %q does not carry the status message", resp.Text())
	}
}

func TestExecuteQueryToolRejectedSQL(t *testing.T) {
	provider := &fakeProvider{
		executeQuery: func(ctx context.Context, sql string) (*database.QueryResult, error) {
			return nil, &database.QueryError{SQL: sql, Err: errors.New(`relation "nope" does not exist`)}
		},
	}

	resp, err := ExecuteQueryTool(provider).Handler(context.Background(), map[string]interface{}{
		"sql": "SELECT * FROM nope",
	})
	if err != nil {
		t.Fatalf("Handler() error: %v", err)
	}
	if !resp.IsError {
		t.Error("a rejected statement did not become an error response")
	}
	if !strings.Contains(resp.Text(), "does not exist") {
		t.Errorf("error text %q does not carry the backend message", resp.Text())
	}
}

func TestExecuteQueryToolMissingSQL(t *testing.T) {
	resp, err := ExecuteQueryTool(&fakeProvider{}).Handler(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Handler() error: %v", err)
	}
	if !resp.IsError {
		t.Error("missing 'sql' argument did not produce an error response")
	}
}

func TestExecuteQueryToolEmptyRowSet(t *testing.T) {
	provider := &fakeProvider{
		executeQuery: func(ctx context.Context, sql string) (*database.QueryResult, error) {
			return &database.QueryResult{Columns: []string{"id"}, Rows: []map[string]interface{}{}}, nil
		},
	}

	resp, err := ExecuteQueryTool(provider).Handler(context.Background(), map[string]interface{}{
		"sql": "SELECT id FROM t WHERE false",
	})
	if err != nil {
		t.Fatalf("Handler() error: %v", err)
	}
	if resp.IsError {
		t.Fatal("an empty row set is a success")
	}
	if !strings.Contains(resp.Text(), "0 rows") {
		t.Errorf("response %q does not report zero rows", resp.Text())
	}
}
