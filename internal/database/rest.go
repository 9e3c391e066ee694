/*-------------------------------------------------------------------------
 *
 * sqlpilot - Hosted REST Metadata Provider
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RESTProvider answers metadata and query requests through server-side SQL
// functions exposed over a PostgREST-style RPC endpoint, for hosted Postgres
// services where no direct wire connection is available. The service must
// have the functions get_schemas, get_tables_in_schema, get_table_schema,
// get_foreign_keys, and execute_sql installed.
type RESTProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ Provider = (*RESTProvider)(nil)

// NewRESTProvider builds a provider for the service at baseURL,
// authenticating every call with apiKey.
func NewRESTProvider(baseURL, apiKey string) *RESTProvider {
	return &RESTProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// restError is the error document the REST layer returns for failed calls.
type restError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Hint    string `json:"hint"`
}

// rpc invokes one server-side function and returns the raw response body.
func (p *RESTProvider) rpc(ctx context.Context, fn string, args map[string]interface{}) ([]byte, int, error) {
	payload := []byte("{}")
	if args != nil {
		var err error
		payload, err = json.Marshal(args)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to encode arguments for %s: %w", fn, err)
		}
	}

	endpoint := p.baseURL + "/rest/v1/rpc/" + fn
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request for %s: %w", fn, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return body, resp.StatusCode, nil
}

// serverMessage extracts the human-readable message from an error body,
// falling back to the raw text.
func serverMessage(body []byte) string {
	var restErr restError
	if err := json.Unmarshal(body, &restErr); err == nil && restErr.Message != "" {
		return restErr.Message
	}
	return strings.TrimSpace(string(body))
}

// metadataCall runs an RPC whose failure means the service itself is
// unusable rather than the caller's input being bad.
func (p *RESTProvider) metadataCall(ctx context.Context, op, fn string, args map[string]interface{}) ([]byte, error) {
	body, status, err := p.rpc(ctx, fn, args)
	if err != nil {
		return nil, connErr(op, err)
	}
	if status < 200 || status >= 300 {
		return nil, connErr(op, fmt.Errorf("%s returned HTTP %d: %s", fn, status, serverMessage(body)))
	}
	return body, nil
}

// ListSchemas returns all non-system schema names.
func (p *RESTProvider) ListSchemas(ctx context.Context) ([]string, error) {
	body, err := p.metadataCall(ctx, "list schemas", "get_schemas", nil)
	if err != nil {
		return nil, err
	}

	var records []struct {
		SchemaName string `json:"schema_name"`
	}
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, connErr("list schemas", fmt.Errorf("unexpected response: %w", err))
	}

	schemas := []string{}
	for _, r := range records {
		schemas = append(schemas, r.SchemaName)
	}
	return schemas, nil
}

// ListTables returns the table names in a schema.
func (p *RESTProvider) ListTables(ctx context.Context, schema string) ([]string, error) {
	body, err := p.metadataCall(ctx, "list tables", "get_tables_in_schema",
		map[string]interface{}{"p_schema_name": schema})
	if err != nil {
		return nil, err
	}

	var records []struct {
		TableName string `json:"table_name"`
	}
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, connErr("list tables", fmt.Errorf("unexpected response: %w", err))
	}

	tables := []string{}
	for _, r := range records {
		tables = append(tables, r.TableName)
	}
	return tables, nil
}

// GetTableSchema returns the columns of a table in declaration order. The
// server function orders by ordinal_position.
func (p *RESTProvider) GetTableSchema(ctx context.Context, schema, table string) ([]Column, error) {
	body, err := p.metadataCall(ctx, "get table schema", "get_table_schema", map[string]interface{}{
		"p_schema_name": schema,
		"p_table_name":  table,
	})
	if err != nil {
		return nil, err
	}

	var records []struct {
		ColumnName    string  `json:"column_name"`
		DataType      string  `json:"data_type"`
		IsNullable    string  `json:"is_nullable"`
		ColumnDefault *string `json:"column_default"`
	}
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, connErr("get table schema", fmt.Errorf("unexpected response: %w", err))
	}

	columns := []Column{}
	for _, r := range records {
		col := Column{
			Name:     r.ColumnName,
			DataType: r.DataType,
			Nullable: strings.EqualFold(r.IsNullable, "YES"),
		}
		if r.ColumnDefault != nil {
			col.Default = *r.ColumnDefault
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// GetForeignKeys returns the outbound foreign keys of a table.
func (p *RESTProvider) GetForeignKeys(ctx context.Context, schema, table string) ([]ForeignKey, error) {
	body, err := p.metadataCall(ctx, "get foreign keys", "get_foreign_keys", map[string]interface{}{
		"p_schema_name": schema,
		"p_table_name":  table,
	})
	if err != nil {
		return nil, err
	}

	var records []struct {
		ColumnName         string `json:"column_name"`
		ForeignTableSchema string `json:"foreign_table_schema"`
		ForeignTableName   string `json:"foreign_table_name"`
		ForeignColumnName  string `json:"foreign_column_name"`
	}
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, connErr("get foreign keys", fmt.Errorf("unexpected response: %w", err))
	}

	keys := []ForeignKey{}
	for _, r := range records {
		keys = append(keys, ForeignKey{
			Column:    r.ColumnName,
			RefSchema: r.ForeignTableSchema,
			RefTable:  r.ForeignTableName,
			RefColumn: r.ForeignColumnName,
		})
	}
	return keys, nil
}

// ExecuteQuery runs one SQL statement through the execute_sql function. The
// function returns rows as JSON objects, so column order follows the order
// the server serialized them in.
func (p *RESTProvider) ExecuteQuery(ctx context.Context, sql string) (*QueryResult, error) {
	body, status, err := p.rpc(ctx, "execute_sql", map[string]interface{}{"p_query": sql})
	if err != nil {
		return nil, connErr("execute query", err)
	}
	if status < 200 || status >= 300 {
		// the server rejected the statement and reported why
		return nil, queryErr(sql, errors.New(serverMessage(body)))
	}

	if !ReturnsRows(sql) {
		// no row count travels back over REST
		return &QueryResult{Status: "Query executed successfully."}, nil
	}

	var rawRows []json.RawMessage
	if err := json.Unmarshal(body, &rawRows); err != nil {
		return nil, connErr("execute query", fmt.Errorf("unexpected response: %w", err))
	}

	results := []map[string]interface{}{}
	var columns []string
	for _, raw := range rawRows {
		if string(raw) == "null" {
			continue
		}

		var row map[string]interface{}
		if err := json.Unmarshal(raw, &row); err != nil {
			// scalar result, give it a synthetic column
			var scalar interface{}
			if err := json.Unmarshal(raw, &scalar); err != nil {
				return nil, connErr("execute query", fmt.Errorf("unexpected response: %w", err))
			}
			row = map[string]interface{}{"value": scalar}
		}

		if columns == nil {
			columns = orderedKeys(raw)
			if columns == nil {
				columns = []string{"value"}
			}
		}
		results = append(results, row)
	}

	return &QueryResult{Columns: columns, Rows: results}, nil
}

// orderedKeys extracts the top-level keys of a JSON object in document
// order, which map decoding would lose. Returns nil if raw is not an object.
func orderedKeys(raw json.RawMessage) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil
	}

	var keys []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		if delim, ok := tok.(json.Delim); ok && delim == '}' {
			return keys
		}

		key, ok := tok.(string)
		if !ok {
			return keys
		}
		keys = append(keys, key)

		// consume the value whole so nested keys don't read as columns
		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			return keys
		}
	}
}

// Ping verifies the REST service answers.
func (p *RESTProvider) Ping(ctx context.Context) error {
	_, err := p.ListSchemas(ctx)
	return err
}

// Close releases idle HTTP connections.
func (p *RESTProvider) Close() {
	p.client.CloseIdleConnections()
}
