/*-------------------------------------------------------------------------
 *
 * sqlpilot - Tool Argument Validation
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tools

import "fmt"

// ValidateStringParam validates and extracts a required string argument.
// Returns the value and an error response when the argument is missing,
// empty, or not a string.
func ValidateStringParam(args map[string]interface{}, name string) (string, *Response) {
	value, ok := args[name].(string)
	if !ok || value == "" {
		resp, _ := NewToolError(fmt.Sprintf("Missing or invalid '%s' argument", name))
		return "", &resp
	}
	return value, nil
}

// ValidateOptionalStringParam extracts an optional string argument, falling
// back to defaultValue when absent or not a string.
func ValidateOptionalStringParam(args map[string]interface{}, name string, defaultValue string) string {
	value, ok := args[name].(string)
	if !ok || value == "" {
		return defaultValue
	}
	return value
}
