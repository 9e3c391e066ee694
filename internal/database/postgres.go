/*-------------------------------------------------------------------------
 *
 * sqlpilot - PostgreSQL Metadata Provider
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"sqlpilot/internal/logging"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// systemSchemaFilter excludes the catalog and metadata schemas from
// discovery results.
const systemSchemaFilter = "('pg_catalog', 'information_schema', 'pg_toast')"

// PoolSettings tunes the underlying pgx pool. Zero values keep the pgx
// defaults.
type PoolSettings struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

// PGProvider answers metadata and query requests over a direct PostgreSQL
// connection pool.
type PGProvider struct {
	pool *pgxpool.Pool
}

var _ Provider = (*PGProvider)(nil)

// NewPGProvider connects a pool for the given connection string and verifies
// the database is reachable before returning.
func NewPGProvider(ctx context.Context, connStr string, settings PoolSettings) (*PGProvider, error) {
	start := time.Now()

	enhanced, err := addApplicationName(connStr, "sqlpilot")
	if err != nil {
		return nil, connErr("configure", err)
	}

	poolConfig, err := pgxpool.ParseConfig(enhanced)
	if err != nil {
		return nil, connErr("configure", fmt.Errorf("invalid connection string: %w", err))
	}

	if settings.MaxConns > 0 {
		poolConfig.MaxConns = settings.MaxConns
	}
	if settings.MinConns > 0 {
		poolConfig.MinConns = settings.MinConns
	}
	if settings.MaxConnIdleTime > 0 {
		// idle connections are torn down by the pool itself
		poolConfig.MaxConnIdleTime = settings.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, connErr("connect", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, connErr("ping", err)
	}

	logging.Info("database connected",
		"host", poolConfig.ConnConfig.Host,
		"database", poolConfig.ConnConfig.Database,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &PGProvider{pool: pool}, nil
}

// addApplicationName adds an application_name parameter to a URL-style
// connection string if one isn't already present. Keyword/value strings are
// returned unchanged.
func addApplicationName(connStr, appName string) (string, error) {
	u, err := url.Parse(connStr)
	if err != nil || u.Scheme == "" {
		// keyword/value form, leave as-is
		return connStr, nil
	}

	query := u.Query()
	if !query.Has("application_name") {
		query.Set("application_name", appName)
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}

// ListSchemas returns all non-system schema names.
func (p *PGProvider) ListSchemas(ctx context.Context) ([]string, error) {
	query := `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ` + systemSchemaFilter + `
		ORDER BY schema_name
	`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, connErr("list schemas", err)
	}
	defer rows.Close()

	schemas := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, connErr("list schemas", err)
		}
		schemas = append(schemas, name)
	}
	if err := rows.Err(); err != nil {
		return nil, connErr("list schemas", err)
	}

	return schemas, nil
}

// ListTables returns the table and view names in a schema. An unknown schema
// simply has no tables.
func (p *PGProvider) ListTables(ctx context.Context, schema string) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		ORDER BY table_name
	`

	rows, err := p.pool.Query(ctx, query, schema)
	if err != nil {
		return nil, connErr("list tables", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, connErr("list tables", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, connErr("list tables", err)
	}

	return tables, nil
}

// GetTableSchema returns the columns of a table in declaration order. A
// missing table yields an empty slice.
func (p *PGProvider) GetTableSchema(ctx context.Context, schema, table string) ([]Column, error) {
	query := `
		SELECT column_name, data_type, is_nullable, COALESCE(column_default, '')
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := p.pool.Query(ctx, query, schema, table)
	if err != nil {
		return nil, connErr("get table schema", err)
	}
	defer rows.Close()

	columns := []Column{}
	for rows.Next() {
		var name, dataType, nullable, def string
		if err := rows.Scan(&name, &dataType, &nullable, &def); err != nil {
			return nil, connErr("get table schema", err)
		}
		columns = append(columns, Column{
			Name:     name,
			DataType: dataType,
			Nullable: nullable == "YES",
			Default:  def,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, connErr("get table schema", err)
	}

	return columns, nil
}

// GetForeignKeys returns the outbound foreign keys of a table.
func (p *PGProvider) GetForeignKeys(ctx context.Context, schema, table string) ([]ForeignKey, error) {
	query := `
		SELECT
			kcu.column_name,
			ccu.table_schema AS foreign_table_schema,
			ccu.table_name AS foreign_table_name,
			ccu.column_name AS foreign_column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.constraint_schema = tc.constraint_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2
	`

	rows, err := p.pool.Query(ctx, query, schema, table)
	if err != nil {
		return nil, connErr("get foreign keys", err)
	}
	defer rows.Close()

	keys := []ForeignKey{}
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Column, &fk.RefSchema, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, connErr("get foreign keys", err)
		}
		keys = append(keys, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, connErr("get foreign keys", err)
	}

	return keys, nil
}

// ExecuteQuery runs one SQL statement. Row-returning statements come back as
// ordered column/row data; everything else executes and reports the affected
// row count.
func (p *PGProvider) ExecuteQuery(ctx context.Context, sql string) (*QueryResult, error) {
	start := time.Now()

	if !ReturnsRows(sql) {
		tag, err := p.pool.Exec(ctx, sql)
		if err != nil {
			return nil, classifyExecErr(sql, err)
		}

		logging.Debug("statement executed",
			"rows_affected", tag.RowsAffected(),
			"duration_ms", time.Since(start).Milliseconds(),
		)

		return &QueryResult{
			Status: fmt.Sprintf("Query executed successfully. Rows affected: %d", tag.RowsAffected()),
		}, nil
	}

	rows, err := p.pool.Query(ctx, sql)
	if err != nil {
		return nil, classifyExecErr(sql, err)
	}
	defer rows.Close()

	fieldDescriptions := rows.FieldDescriptions()
	columnNames := make([]string, 0, len(fieldDescriptions))
	for _, fd := range fieldDescriptions {
		columnNames = append(columnNames, string(fd.Name))
	}

	results := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, classifyExecErr(sql, err)
		}

		row := make(map[string]interface{}, len(columnNames))
		for i, colName := range columnNames {
			row[colName] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyExecErr(sql, err)
	}

	logging.Debug("query executed",
		"rows", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &QueryResult{Columns: columnNames, Rows: results}, nil
}

// classifyExecErr separates statements the backend rejected from transport
// failures. A PgError means the server spoke, so the statement is at fault.
func classifyExecErr(sql string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return queryErr(sql, err)
	}
	return connErr("execute query", err)
}

// Ping verifies the database is reachable.
func (p *PGProvider) Ping(ctx context.Context) error {
	return connErr("ping", p.pool.Ping(ctx))
}

// Close releases the pool.
func (p *PGProvider) Close() {
	p.pool.Close()
}
