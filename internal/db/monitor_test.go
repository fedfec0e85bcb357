package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_sessionsAcrossDrivers(t *testing.T) {
	ctx := context.Background()

	mon, err := NewMonitor(ctx, sqliteInfo())
	require.NoError(t, err)
	defer mon.Close()

	d1 := newTestSQLiteDriver(t, nil)
	d2 := newTestSQLiteDriver(t, nil)
	id1, err := d1.SessionID(ctx)
	require.NoError(t, err)
	id2, err := d2.SessionID(ctx)
	require.NoError(t, err)

	set, err := mon.Sessions(ctx)
	require.NoError(t, err)
	assert.Contains(t, set, id1)
	assert.Contains(t, set, id2)

	require.NoError(t, d1.Close())

	alive, err := mon.Has(ctx, id1)
	require.NoError(t, err)
	assert.False(t, alive)
	alive, err = mon.Has(ctx, id2)
	require.NoError(t, err)
	assert.True(t, alive)
}

func TestMonitor_survivesRegistryClose(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	mon, err := NewMonitor(ctx, sqliteInfo())
	require.NoError(t, err)
	defer mon.Close()

	d, err := reg.Get(ctx, "", "")
	require.NoError(t, err)
	id, err := d.SessionID(ctx)
	require.NoError(t, err)

	// Closing registry slots must not recycle the monitor's own session.
	reg.Close("", "")
	reg.CloseAll()

	alive, err := mon.Has(ctx, id)
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestMonitor_invalidConfig(t *testing.T) {
	_, err := NewMonitor(context.Background(), ConnInfo{Type: "sqlite"})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
