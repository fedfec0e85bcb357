package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

// SQLite is embedded and has no server-side session list, so the driver
// keeps a process-wide table of open sessions keyed by a synthetic ID. IDs
// are unique among live sessions and never reused while a session is alive,
// matching what a networked backend's process list provides.
var (
	sqliteSessionSeq atomic.Int64
	sqliteSessionsMu sync.Mutex
	sqliteSessions   = make(map[int64]struct{})
)

func registerSQLiteSession() int64 {
	id := sqliteSessionSeq.Add(1)
	sqliteSessionsMu.Lock()
	sqliteSessions[id] = struct{}{}
	sqliteSessionsMu.Unlock()
	return id
}

func unregisterSQLiteSession(id int64) {
	sqliteSessionsMu.Lock()
	delete(sqliteSessions, id)
	sqliteSessionsMu.Unlock()
}

// SQLiteDriver implements Driver for SQLite using modernc.org/sqlite (pure
// Go, no CGO). A dedicated sql.Conn pins one connection so session-scoped
// PRAGMA settings stay in effect for the lifetime of the handle.
type SQLiteDriver struct {
	db        *sql.DB
	conn      *sql.Conn
	sessionID int64
	closed    bool
	closeMu   sync.Mutex
}

// NewSQLiteDriver opens a SQLite database at the given path (or URI such as
// "file:path?mode=..."). Options are applied as PRAGMA statements on the
// pinned connection.
func NewSQLiteDriver(ctx context.Context, uri string, options map[string]string) (*SQLiteDriver, error) {
	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite conn: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	d := &SQLiteDriver{db: db, conn: conn}
	for name, value := range options {
		if err := d.setOption(ctx, name, value); err != nil {
			conn.Close()
			db.Close()
			return nil, err
		}
	}
	d.sessionID = registerSQLiteSession()
	return d, nil
}

// setOption applies one PRAGMA. PRAGMA takes no bind parameters, so both
// name and value are validated before interpolation.
func (d *SQLiteDriver) setOption(ctx context.Context, name, value string) error {
	if !optionName.MatchString(name) {
		return fmt.Errorf("sqlite option: invalid name %q", name)
	}
	if !sqlitePragmaValue.MatchString(value) {
		return fmt.Errorf("sqlite option %s: invalid value %q", name, value)
	}
	if _, err := d.conn.ExecContext(ctx, fmt.Sprintf("PRAGMA %s = %s", name, value)); err != nil {
		return fmt.Errorf("sqlite option %s: %w", name, err)
	}
	return nil
}

// Ping implements Driver.
func (d *SQLiteDriver) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// SessionID implements Driver. The ID is synthetic (see package note above).
func (d *SQLiteDriver) SessionID(_ context.Context) (int64, error) {
	return d.sessionID, nil
}

// ActiveSessions implements Driver. Returns every open SQLite session in
// this process, sorted for determinism.
func (d *SQLiteDriver) ActiveSessions(_ context.Context) ([]int64, error) {
	sqliteSessionsMu.Lock()
	ids := make([]int64, 0, len(sqliteSessions))
	for id := range sqliteSessions {
		ids = append(ids, id)
	}
	sqliteSessionsMu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// EffectiveOption implements Driver. Reads the PRAGMA back from the pinned
// connection, so overrides are observable on the live session.
func (d *SQLiteDriver) EffectiveOption(ctx context.Context, name string) (string, error) {
	if !optionName.MatchString(name) {
		return "", fmt.Errorf("sqlite option: invalid name %q", name)
	}
	var value any
	if err := d.conn.QueryRowContext(ctx, fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return "", fmt.Errorf("sqlite option %s: %w", name, err)
	}
	return fmt.Sprint(value), nil
}

// Query implements Driver. Uses $1, $2 style positional params converted to
// SQLite's ?1, ?2 syntax.
func (d *SQLiteDriver) Query(ctx context.Context, query string, params []any) ([]map[string]any, error) {
	query = convertPlaceholdersToSQLite(query)
	rows, err := d.conn.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlRowsToMaps(rows)
}

// convertPlaceholdersToSQLite replaces $1, $2, ... with ?1, ?2, ... for SQLite.
func convertPlaceholdersToSQLite(s string) string {
	return dollarPlaceholder.ReplaceAllString(s, "?${1}")
}

// Close implements Driver. Unregisters the synthetic session and releases
// the pinned connection. Safe to call more than once.
func (d *SQLiteDriver) Close() error {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	unregisterSQLiteSession(d.sessionID)
	err := d.conn.Close()
	if dbErr := d.db.Close(); err == nil {
		err = dbErr
	}
	if err != nil && isClosedConn(err) {
		return nil
	}
	return err
}

// sqlitePragmaValue limits PRAGMA values to bare keywords and numbers.
var sqlitePragmaValue = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

var _ Driver = (*SQLiteDriver)(nil)
