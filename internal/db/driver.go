// Package db provides the connection registry and the database driver
// abstraction for PostgreSQL, MySQL, SQLite and SQL Server. Each open Driver
// is pinned to a single physical server session so that session identity is
// stable for the lifetime of the handle.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
)

// DefaultKey and DefaultTarget name the implicit slot used when a caller
// leaves the key or target empty.
const (
	DefaultKey    = "default"
	DefaultTarget = "default"
)

// TargetKey addresses one registry slot: a key groups related targets
// (e.g. "default"/"default", "default"/"monitor").
type TargetKey struct {
	Key    string
	Target string
}

func (k TargetKey) String() string {
	return k.Key + "/" + k.Target
}

// ConnInfo is the registered configuration for one slot. It is copied on
// registration and on read, so callers cannot mutate registry state through
// it. The URI may contain credentials and must never be logged.
type ConnInfo struct {
	Type    string
	URI     string
	Options map[string]string
}

func (c ConnInfo) clone() ConnInfo {
	out := ConnInfo{Type: c.Type, URI: c.URI}
	if c.Options != nil {
		out.Options = make(map[string]string, len(c.Options))
		for k, v := range c.Options {
			out.Options[k] = v
		}
	}
	return out
}

// validate checks mandatory fields. Validation is deliberately deferred to
// open time; registration accepts anything.
func (c ConnInfo) validate() error {
	if c.Type == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidConfig)
	}
	if c.URI == "" {
		return fmt.Errorf("%w: missing uri", ErrInvalidConfig)
	}
	return nil
}

// Driver is one live physical database session. Implementations are
// backend-specific; the registry treats them as opaque.
type Driver interface {
	// Ping verifies the session is alive.
	Ping(ctx context.Context) error
	// SessionID returns the server-assigned identifier of this session.
	SessionID(ctx context.Context) (int64, error)
	// ActiveSessions returns the identifiers of all sessions currently
	// visible on the server, including this one.
	ActiveSessions(ctx context.Context) ([]int64, error)
	// EffectiveOption returns the live session-level value of a driver
	// option, so that option overrides are observable on the open session
	// rather than only in stored configuration.
	EffectiveOption(ctx context.Context, name string) (string, error)
	// Query runs a read-only SQL statement (caller must validate).
	// Params are positional ($1, $2; converted per backend).
	// Returns rows as slice of column-name -> value maps.
	Query(ctx context.Context, sql string, params []any) ([]map[string]any, error)
	// Close terminates the session. Safe to call more than once.
	Close() error
}

// open dispatches on the configured type. Constructor errors may contain the
// URI; callers must sanitize before surfacing them.
func open(ctx context.Context, info ConnInfo) (Driver, error) {
	if err := info.validate(); err != nil {
		return nil, err
	}
	switch info.Type {
	case "postgres":
		return NewPostgresDriver(ctx, info.URI, info.Options)
	case "mysql":
		return NewMySQLDriver(ctx, info.URI, info.Options)
	case "sqlite":
		return NewSQLiteDriver(ctx, info.URI, info.Options)
	case "sqlserver":
		return NewSQLServerDriver(ctx, info.URI, info.Options)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, info.Type)
	}
}

// optionName guards option identifiers before they are interpolated into
// session-variable and PRAGMA statements, which cannot take bind parameters.
var optionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var dollarPlaceholder = regexp.MustCompile(`\$(\d+)`)

// isClosedConn reports whether err indicates the session was already gone
// when Close ran. Treated as success: local bookkeeping may lag server-side
// teardown.
func isClosedConn(err error) bool {
	return errors.Is(err, sql.ErrConnDone)
}

// sqlRowsToMaps builds []map[string]any from database/sql.Rows.
func sqlRowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, nil
	}
	var out []map[string]any
	scan := make([]any, len(cols))
	for i := range scan {
		scan[i] = new(any)
	}
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			m[c] = *(scan[i].(*any))
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// scanIDs collects a single int64 column, used by ActiveSessions queries.
func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
