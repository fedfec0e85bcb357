package db

import "errors"

// Sentinel errors for error inspection with errors.Is through wrapped chains.
var (
	// ErrNotConfigured is returned by Get when the slot has no registered
	// configuration. There is no implicit fallback to defaults.
	ErrNotConfigured = errors.New("connection not configured")

	// ErrInvalidConfig is returned at open time when a registered
	// configuration is missing mandatory fields.
	ErrInvalidConfig = errors.New("invalid connection config")

	// ErrUnsupportedType is returned at open time for an unknown driver type.
	ErrUnsupportedType = errors.New("unsupported connection type")

	// ErrConnect is returned by Get when the dial itself failed. The wrapped
	// message is sanitized; the full cause is only logged server-side.
	ErrConnect = errors.New("failed to connect")
)
