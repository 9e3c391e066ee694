/*-------------------------------------------------------------------------
 *
 * sqlpilot - SQL Statement Classification
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import "strings"

// ReturnsRows reports whether a statement produces a result set. The
// decision is made from the first keyword after leading whitespace,
// comments, and opening parentheses, so "WITH ... SELECT", parenthesized
// selects, and statements behind comment banners classify correctly.
func ReturnsRows(sql string) bool {
	switch FirstKeyword(sql) {
	case "select", "with", "values", "table", "show", "explain":
		return true
	}
	return false
}

// FirstKeyword returns the first SQL keyword of a statement, lowercased.
// Leading whitespace, "--" line comments, "/* */" block comments (which
// PostgreSQL nests), and opening parentheses are skipped. An empty string
// means no keyword was found.
func FirstKeyword(sql string) string {
	i := 0
	n := len(sql)

	for i < n {
		c := sql[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			i++

		case c == '(' || c == ';':
			i++

		case c == '-' && i+1 < n && sql[i+1] == '-':
			// line comment runs to end of line
			i += 2
			for i < n && sql[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && sql[i+1] == '*':
			// block comments nest in PostgreSQL
			depth := 1
			i += 2
			for i < n && depth > 0 {
				if sql[i] == '/' && i+1 < n && sql[i+1] == '*' {
					depth++
					i += 2
				} else if sql[i] == '*' && i+1 < n && sql[i+1] == '/' {
					depth--
					i += 2
				} else {
					i++
				}
			}

		default:
			start := i
			for i < n && isKeywordChar(sql[i]) {
				i++
			}
			if i == start {
				// not a keyword character at all
				return ""
			}
			return strings.ToLower(sql[start:i])
		}
	}

	return ""
}

func isKeywordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}
