/*-------------------------------------------------------------------------
 *
 * sqlpilot - Get Foreign Keys Tool Tests
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

	"sqlpilot/internal/database"
)

func TestGetForeignKeysTool(t *testing.T) {
	provider := &fakeProvider{
		getForeignKeys: func(ctx context.Context, schema, table string) ([]database.ForeignKey, error) {
			return []database.ForeignKey{
				{Column: "customer_id", RefSchema: "sales", RefTable: "customers", RefColumn: "id"},
			}, nil
		},
	}

	tool := GetForeignKeysTool(provider)
	resp, err := tool.Handler(context.Background(), map[string]interface{}{
		"schema": "sales",
		"table":  "orders",
	})
	if err != nil {
		t.Fatalf("Handler() error: %v", err)
	}
	if resp.IsError {
		t.Fatalf("Handler() returned an error response: %s", resp.Text())
	}

	text := resp.Text()
	if !strings.Contains(text, "customer_id") {
		t.Errorf("response %q does not name the referencing column", text)
	}
	if !strings.Contains(text, "customers") {
		t.Errorf("response %q does not name the referenced table", text)
	}
}

func TestGetForeignKeysToolNone(t *testing.T) {
	tool := GetForeignKeysTool(&fakeProvider{})

	resp, err := tool.Handler(context.Background(), map[string]interface{}{
		"schema": "public",
		"table":  "settings",
	})
	if err != nil {
		t.Fatalf("Handler() error: %v", err)
	}
	if resp.IsError {
		t.Error("a table without foreign keys is an empty result, not an error")
	}
	if !strings.Contains(resp.Text(), "no foreign keys") {
		t.Errorf("response %q does not explain the empty result", resp.Text())
	}
}
