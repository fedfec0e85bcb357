package db

import (
	"context"
	"testing"
)

func newTestSQLiteDriver(t *testing.T, options map[string]string) *SQLiteDriver {
	t.Helper()
	d, err := NewSQLiteDriver(context.Background(), ":memory:", options)
	if err != nil {
		t.Fatalf("NewSQLiteDriver: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestSQLite_Ping(t *testing.T) {
	d := newTestSQLiteDriver(t, nil)
	if err := d.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestSQLite_SessionID_uniqueAcrossOpens(t *testing.T) {
	ctx := context.Background()
	d1 := newTestSQLiteDriver(t, nil)
	d2 := newTestSQLiteDriver(t, nil)

	id1, err := d1.SessionID(ctx)
	if err != nil {
		t.Fatalf("SessionID: %v", err)
	}
	id2, err := d2.SessionID(ctx)
	if err != nil {
		t.Fatalf("SessionID: %v", err)
	}
	if id1 == id2 {
		t.Errorf("concurrent sessions must have distinct IDs, both got %d", id1)
	}
}

func TestSQLite_ActiveSessions_trackOpenAndClose(t *testing.T) {
	ctx := context.Background()
	d1 := newTestSQLiteDriver(t, nil)
	d2 := newTestSQLiteDriver(t, nil)

	id2, err := d2.SessionID(ctx)
	if err != nil {
		t.Fatalf("SessionID: %v", err)
	}

	ids, err := d1.ActiveSessions(ctx)
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if !containsID(ids, id2) {
		t.Errorf("expected session %d in %v", id2, ids)
	}

	if err := d2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	ids, err = d1.ActiveSessions(ctx)
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if containsID(ids, id2) {
		t.Errorf("session %d still listed after close: %v", id2, ids)
	}
}

func TestSQLite_Close_idempotent(t *testing.T) {
	d, err := NewSQLiteDriver(context.Background(), ":memory:", nil)
	if err != nil {
		t.Fatalf("NewSQLiteDriver: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close again: %v", err)
	}
}

func TestSQLite_EffectiveOption(t *testing.T) {
	ctx := context.Background()
	d := newTestSQLiteDriver(t, map[string]string{"foreign_keys": "on"})

	val, err := d.EffectiveOption(ctx, "foreign_keys")
	if err != nil {
		t.Fatalf("EffectiveOption: %v", err)
	}
	if val != "1" {
		t.Errorf("foreign_keys: got %q, want \"1\"", val)
	}

	plain := newTestSQLiteDriver(t, nil)
	val, err = plain.EffectiveOption(ctx, "foreign_keys")
	if err != nil {
		t.Fatalf("EffectiveOption: %v", err)
	}
	if val != "0" {
		t.Errorf("foreign_keys without override: got %q, want \"0\"", val)
	}
}

func TestSQLite_EffectiveOption_badName(t *testing.T) {
	d := newTestSQLiteDriver(t, nil)
	if _, err := d.EffectiveOption(context.Background(), "foreign_keys; DROP TABLE x"); err == nil {
		t.Error("expected error for invalid option name")
	}
}

func TestSQLite_openOption_badValue(t *testing.T) {
	_, err := NewSQLiteDriver(context.Background(), ":memory:", map[string]string{"journal_mode": "wal'); --"})
	if err == nil {
		t.Error("expected error for invalid option value")
	}
}

func TestSQLite_Query(t *testing.T) {
	ctx := context.Background()
	d := newTestSQLiteDriver(t, nil)

	rows, err := d.Query(ctx, "SELECT $1 AS a, $2 AS b", []any{int64(7), "x"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0]["a"] != int64(7) || rows[0]["b"] != "x" {
		t.Errorf("unexpected row: %v", rows[0])
	}
}

func TestConvertPlaceholdersToSQLite(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT * FROM t WHERE a = $1", "SELECT * FROM t WHERE a = ?1"},
		{"$1 AND $2", "?1 AND ?2"},
		{"$10", "?10"},
		{"no placeholders", "no placeholders"},
	}
	for _, tt := range tests {
		got := convertPlaceholdersToSQLite(tt.in)
		if got != tt.want {
			t.Errorf("convertPlaceholdersToSQLite(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
