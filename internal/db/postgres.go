package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PostgresDriver implements Driver for PostgreSQL using pgx. A pgx.Conn is a
// single connection, so the handle maps one-to-one onto a server backend.
type PostgresDriver struct {
	conn *pgx.Conn
}

// NewPostgresDriver connects to PostgreSQL using the given URI. Options are
// applied as session settings via set_config.
func NewPostgresDriver(ctx context.Context, uri string, options map[string]string) (*PostgresDriver, error) {
	conn, err := pgx.Connect(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	d := &PostgresDriver{conn: conn}
	for name, value := range options {
		if err := d.setOption(ctx, name, value); err != nil {
			conn.Close(ctx)
			return nil, err
		}
	}
	return d, nil
}

func (d *PostgresDriver) setOption(ctx context.Context, name, value string) error {
	if !optionName.MatchString(name) {
		return fmt.Errorf("postgres option: invalid name %q", name)
	}
	if _, err := d.conn.Exec(ctx, "SELECT set_config($1, $2, false)", name, value); err != nil {
		return fmt.Errorf("postgres option %s: %w", name, err)
	}
	return nil
}

// Ping implements Driver.
func (d *PostgresDriver) Ping(ctx context.Context) error {
	return d.conn.Ping(ctx)
}

// SessionID implements Driver. The backend PID identifies the session in
// pg_stat_activity.
func (d *PostgresDriver) SessionID(ctx context.Context) (int64, error) {
	var pid int64
	if err := d.conn.QueryRow(ctx, "SELECT pg_backend_pid()").Scan(&pid); err != nil {
		return 0, fmt.Errorf("postgres session id: %w", err)
	}
	return pid, nil
}

// ActiveSessions implements Driver.
func (d *PostgresDriver) ActiveSessions(ctx context.Context) ([]int64, error) {
	rows, err := d.conn.Query(ctx, "SELECT pid FROM pg_stat_activity WHERE pid IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("postgres active sessions: %w", err)
	}
	defer rows.Close()
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

// EffectiveOption implements Driver. Reads the current session setting, so
// overrides applied at open are observable on the live session.
func (d *PostgresDriver) EffectiveOption(ctx context.Context, name string) (string, error) {
	if !optionName.MatchString(name) {
		return "", fmt.Errorf("postgres option: invalid name %q", name)
	}
	var value string
	if err := d.conn.QueryRow(ctx, "SELECT current_setting($1)", name).Scan(&value); err != nil {
		return "", fmt.Errorf("postgres option %s: %w", name, err)
	}
	return value, nil
}

// Query implements Driver. Params are positional ($1, $2, ...).
func (d *PostgresDriver) Query(ctx context.Context, sql string, params []any) ([]map[string]any, error) {
	rows, err := d.conn.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return pgxRowsToMaps(rows)
}

func pgxRowsToMaps(rows pgx.Rows) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	if len(fields) == 0 {
		return nil, nil
	}
	var out []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, len(fields))
		for i, f := range fields {
			name := string(f.Name)
			if name == "" {
				name = fmt.Sprintf("column_%d", i+1)
			}
			m[name] = vals[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close implements Driver.
func (d *PostgresDriver) Close() error {
	err := d.conn.Close(context.Background())
	if err != nil && d.conn.IsClosed() {
		return nil
	}
	return err
}

var _ Driver = (*PostgresDriver)(nil)
