// Package sql provides identifier validation and quoting for the storage
// backends.
package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on an identifier.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Value       string // The value that was checked
}

// CheckForInjection uses libinjection to detect SQL injection patterns in a
// value that will be interpolated into DDL or a query as an identifier.
//
// Returns nil if no injection is detected.
//
// Example:
//
//	CheckForInjection("raw_orders")            // nil
//	CheckForInjection("x'; DROP TABLE users--") // IsSQLi == true
func CheckForInjection(value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Value:       value,
	}
}
