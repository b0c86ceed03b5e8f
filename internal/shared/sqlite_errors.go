// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import "strings"

// IsSQLiteConflictError checks whether the error is a SQLite
// concurrency error (SQLITE_BUSY or "database is locked"). The driver
// surfaces these as plain strings, so matching on text is the only
// option. Errors of this kind warrant a short retry.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
