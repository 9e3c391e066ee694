/*-------------------------------------------------------------------------
 *
 * sqlpilot - List Tables Tool Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"context"
	"strings"
	"testing"
)

func TestListTablesTool(t *testing.T) {
	var gotSchema string
	provider := &fakeProvider{
		listTables: func(ctx context.Context, schema string) ([]string, error) {
			gotSchema = schema
			return []string{"customers", "orders"}, nil
		},
	}

	tool := ListTablesTool(provider)
	resp, err := tool.Handler(context.Background(), map[string]interface{}{"schema": "sales"})
	if err != nil {
		t.Fatalf("Handler() error: %v", err)
	}
	if resp.IsError {
		t.Fatalf("Handler() returned an error response: %s", resp.Text())
	}

	if gotSchema != "sales" {
		t.Errorf("provider received schema %q, want sales", gotSchema)
	}
	if !strings.Contains(resp.Text(), "customers") || !strings.Contains(resp.Text(), "orders") {
		t.Errorf("response %q does not list the tables", resp.Text())
	}
}

func TestListTablesToolUnknownSchema(t *testing.T) {
	tool := ListTablesTool(&fakeProvider{})

	resp, err := tool.Handler(context.Background(), map[string]interface{}{"schema": "ghost"})
	if err != nil {
		t.Fatalf("Handler() error: %v", err)
	}
	if resp.IsError {
		t.Error("an unknown schema is an empty result, not an error")
	}
	if !strings.Contains(resp.Text(), "no tables") {
		t.Errorf("response %q does not explain the empty result", resp.Text())
	}
}

func TestListTablesToolMissingArgument(t *testing.T) {
	tool := ListTablesTool(&fakeProvider{})

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"absent", map[string]interface{}{}},
		{"empty", map[string]interface{}{"schema": ""}},
		{"wrong type", map[string]interface{}{"schema": 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := tool.Handler(context.Background(), tt.args)
			if err != nil {
				t.Fatalf("Handler() error: %v", err)
			}
			if !resp.IsError {
				t.Error("invalid 'schema' argument did not produce an error response")
			}
			if !strings.Contains(resp.Text(), "schema") {
				t.Errorf("error text %q does not name the bad argument", resp.Text())
			}
		})
	}
}
