package db

import "context"

// Monitor observes server-side session state through its own dedicated
// driver, opened directly from configuration and never cached in a
// Registry. Closing or removing registry slots cannot recycle it, so it
// stays usable for verifying that other sessions are really gone.
type Monitor struct {
	d Driver
}

// NewMonitor opens a dedicated monitoring session from the given
// configuration. The caller owns the monitor and must Close it.
func NewMonitor(ctx context.Context, info ConnInfo) (*Monitor, error) {
	d, err := open(ctx, info)
	if err != nil {
		return nil, err
	}
	return &Monitor{d: d}, nil
}

// Sessions returns the set of session IDs currently visible on the server.
// Read-only; does not touch registry state.
func (m *Monitor) Sessions(ctx context.Context) (map[int64]struct{}, error) {
	ids, err := m.d.ActiveSessions(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// Has reports whether the server currently lists the given session.
func (m *Monitor) Has(ctx context.Context, id int64) (bool, error) {
	set, err := m.Sessions(ctx)
	if err != nil {
		return false, err
	}
	_, ok := set[id]
	return ok, nil
}

// Close terminates the monitoring session.
func (m *Monitor) Close() error {
	return m.d.Close()
}
