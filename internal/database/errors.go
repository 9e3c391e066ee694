/*-------------------------------------------------------------------------
 *
 * sqlpilot - Database Error Types
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import "fmt"

// ConnError indicates the database could not be reached or the transport
// failed mid-operation.
type ConnError struct {
	Op  string // what was being attempted, e.g. "connect", "list schemas"
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("database unreachable during %s: %v", e.Op, e.Err)
}

func (e *ConnError) Unwrap() error {
	return e.Err
}

// QueryError indicates the backend accepted the connection but rejected the
// statement. The backend's own message is preserved so the model can read it
// and correct the SQL.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// connErr wraps err as a *ConnError unless it is nil.
func connErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ConnError{Op: op, Err: err}
}

// queryErr wraps err as a *QueryError unless it is nil.
func queryErr(sql string, err error) error {
	if err == nil {
		return nil
	}
	return &QueryError{SQL: sql, Err: err}
}
