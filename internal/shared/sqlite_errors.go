// Package shared provides common utilities used across the codebase.
package shared

import "strings"

// IsSQLiteConflictError reports whether err is a SQLite concurrency
// error (SQLITE_BUSY or "database is locked"). The driver surfaces
// these as plain strings, so substring matching is the only check
// available. Writes that hit one of these typically warrant a retry.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
