/*
Package util contains utility functions for other packages
*/
package util

import "log/slog"

// SlogPanic logs s at error level and panics, used for broken invariants
func SlogPanic(s string, args ...any) {
	slog.Error(s, args...)
	panic(s)
}
