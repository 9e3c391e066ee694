/*-------------------------------------------------------------------------
 *
 * sqlpilot - Tool Test Fixtures
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"context"

	"sqlpilot/internal/database"
)

// fakeProvider scripts provider responses per call. Unset functions yield
// empty results.
type fakeProvider struct {
	listSchemas    func(ctx context.Context) ([]string, error)
	listTables     func(ctx context.Context, schema string) ([]string, error)
	getTableSchema func(ctx context.Context, schema, table string) ([]database.Column, error)
	getForeignKeys func(ctx context.Context, schema, table string) ([]database.ForeignKey, error)
	executeQuery   func(ctx context.Context, sql string) (*database.QueryResult, error)
}

var _ database.Provider = (*fakeProvider)(nil)

func (f *fakeProvider) ListSchemas(ctx context.Context) ([]string, error) {
	if f.listSchemas == nil {
		return []string{}, nil
	}
	return f.listSchemas(ctx)
}

func (f *fakeProvider) ListTables(ctx context.Context, schema string) ([]string, error) {
	if f.listTables == nil {
		return []string{}, nil
	}
	return f.listTables(ctx, schema)
}

func (f *fakeProvider) GetTableSchema(ctx context.Context, schema, table string) ([]database.Column, error) {
	if f.getTableSchema == nil {
		return []database.Column{}, nil
	}
	return f.getTableSchema(ctx, schema, table)
}

func (f *fakeProvider) GetForeignKeys(ctx context.Context, schema, table string) ([]database.ForeignKey, error) {
	if f.getForeignKeys == nil {
		return []database.ForeignKey{}, nil
	}
	return f.getForeignKeys(ctx, schema, table)
}

func (f *fakeProvider) ExecuteQuery(ctx context.Context, sql string) (*database.QueryResult, error) {
	if f.executeQuery == nil {
		return &database.QueryResult{Status: "Query executed successfully. Rows affected: 0"}, nil
	}
	return f.executeQuery(ctx, sql)
}

func (f *fakeProvider) Ping(ctx context.Context) error {
	return nil
}

func (f *fakeProvider) Close() {}
