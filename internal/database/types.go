/*-------------------------------------------------------------------------
 *
 * sqlpilot - Database Provider Types
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import "context"

// Column describes one column of a table. Slices of Column are always in
// declaration order (ordinal_position).
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
	Default  string `json:"default,omitempty"`
}

// ForeignKey describes an outbound reference from a column of the inspected
// table to a column elsewhere.
type ForeignKey struct {
	Column    string `json:"column"`
	RefSchema string `json:"ref_schema"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// QueryResult is the outcome of executing one SQL statement. Row-returning
// statements populate Columns and Rows; all other statements populate Status
// with a short human-readable summary.
type QueryResult struct {
	Columns []string                 `json:"columns,omitempty"`
	Rows    []map[string]interface{} `json:"rows,omitempty"`
	Status  string                   `json:"status,omitempty"`
}

// HasRows reports whether the result carries a row set rather than a status
// message. An empty row set from a row-returning statement still counts.
func (r *QueryResult) HasRows() bool {
	return r.Status == ""
}

// Provider is the metadata and query surface the assistant's tools call.
// Implementations answer from the live database on every call; none of the
// catalog reads are cached, so results always reflect the database as it is
// at call time.
type Provider interface {
	// ListSchemas returns all schema names except the system schemas.
	ListSchemas(ctx context.Context) ([]string, error)

	// ListTables returns the table and view names in a schema. An unknown
	// or empty schema yields an empty slice, not an error.
	ListTables(ctx context.Context, schema string) ([]string, error)

	// GetTableSchema returns the columns of a table in declaration order.
	// A missing table yields an empty slice.
	GetTableSchema(ctx context.Context, schema, table string) ([]Column, error)

	// GetForeignKeys returns the outbound foreign keys of a table. A table
	// without any yields an empty slice.
	GetForeignKeys(ctx context.Context, schema, table string) ([]ForeignKey, error)

	// ExecuteQuery runs one SQL statement. Row-returning statements come
	// back as ordered column/row data, everything else as a status message
	// with the affected row count. Statements the backend rejects surface
	// as *QueryError with the backend's message intact.
	ExecuteQuery(ctx context.Context, sql string) (*QueryResult, error)

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases the provider's connections.
	Close()
}
