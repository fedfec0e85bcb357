package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLDriver implements Driver for MySQL using go-sql-driver/mysql. A
// dedicated sql.Conn pins one connection out of the pool so CONNECTION_ID()
// and session variables are stable for the lifetime of the handle.
type MySQLDriver struct {
	db      *sql.DB
	conn    *sql.Conn
	closed  bool
	closeMu sync.Mutex
}

// NewMySQLDriver connects to MySQL using the given DSN
// (e.g. "user:password@tcp(localhost:3306)/dbname"). Options are applied as
// session system variables.
func NewMySQLDriver(ctx context.Context, dsn string, options map[string]string) (*MySQLDriver, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql open: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql conn: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("mysql ping: %w", err)
	}
	d := &MySQLDriver{db: db, conn: conn}
	for name, value := range options {
		if err := d.setOption(ctx, name, value); err != nil {
			conn.Close()
			db.Close()
			return nil, err
		}
	}
	return d, nil
}

func (d *MySQLDriver) setOption(ctx context.Context, name, value string) error {
	if !optionName.MatchString(name) {
		return fmt.Errorf("mysql option: invalid name %q", name)
	}
	if _, err := d.conn.ExecContext(ctx, fmt.Sprintf("SET SESSION %s = ?", name), value); err != nil {
		return fmt.Errorf("mysql option %s: %w", name, err)
	}
	return nil
}

// Ping implements Driver.
func (d *MySQLDriver) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// SessionID implements Driver. CONNECTION_ID() matches the ID column of the
// server process list.
func (d *MySQLDriver) SessionID(ctx context.Context) (int64, error) {
	var id int64
	if err := d.conn.QueryRowContext(ctx, "SELECT CONNECTION_ID()").Scan(&id); err != nil {
		return 0, fmt.Errorf("mysql session id: %w", err)
	}
	return id, nil
}

// ActiveSessions implements Driver.
func (d *MySQLDriver) ActiveSessions(ctx context.Context) ([]int64, error) {
	rows, err := d.conn.QueryContext(ctx, "SELECT ID FROM information_schema.PROCESSLIST")
	if err != nil {
		return nil, fmt.Errorf("mysql active sessions: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// EffectiveOption implements Driver. Reads the session system variable back
// from the pinned connection.
func (d *MySQLDriver) EffectiveOption(ctx context.Context, name string) (string, error) {
	if !optionName.MatchString(name) {
		return "", fmt.Errorf("mysql option: invalid name %q", name)
	}
	var value string
	if err := d.conn.QueryRowContext(ctx, fmt.Sprintf("SELECT @@SESSION.%s", name)).Scan(&value); err != nil {
		return "", fmt.Errorf("mysql option %s: %w", name, err)
	}
	return value, nil
}

// Query implements Driver. Converts $1, $2 placeholders to MySQL's
// positional ? syntax; order must match the params slice.
func (d *MySQLDriver) Query(ctx context.Context, query string, params []any) ([]map[string]any, error) {
	query = convertPlaceholdersToMySQL(query)
	rows, err := d.conn.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlRowsToMaps(rows)
}

// convertPlaceholdersToMySQL replaces $1, $2, ... with ? for go-sql-driver/mysql.
func convertPlaceholdersToMySQL(s string) string {
	return dollarPlaceholder.ReplaceAllString(s, "?")
}

// Close implements Driver. Releases the pinned connection and the pool.
// Safe to call more than once.
func (d *MySQLDriver) Close() error {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	err := d.conn.Close()
	if dbErr := d.db.Close(); err == nil {
		err = dbErr
	}
	if err != nil && isClosedConn(err) {
		return nil
	}
	return err
}

var _ Driver = (*MySQLDriver)(nil)
