//go:build !linux

package logger

// IsTerminal is false off linux, so auto format falls back to text.
func IsTerminal(uintptr) bool { return false }
