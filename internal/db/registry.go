package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Registry tracks connection configuration per slot and caches at most one
// open Driver per slot. Drivers are opened lazily on first Get and owned by
// the registry: callers receive a shared handle whose lifetime is bounded by
// the registry entry. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	infos   map[TargetKey]ConnInfo
	drivers map[TargetKey]Driver

	// dials deduplicates concurrent first opens per slot so a cold slot
	// never dials twice.
	dials singleflight.Group
}

// NewRegistry returns an empty registry. Multiple isolated registries may
// coexist in one process; there is no package-level state here.
func NewRegistry() *Registry {
	return &Registry{
		infos:   make(map[TargetKey]ConnInfo),
		drivers: make(map[TargetKey]Driver),
	}
}

// slot normalizes empty key/target to the defaults.
func slot(key, target string) TargetKey {
	if key == "" {
		key = DefaultKey
	}
	if target == "" {
		target = DefaultTarget
	}
	return TargetKey{Key: key, Target: target}
}

// Add registers or overwrites the configuration for a slot. An already-open
// driver for the slot keeps using its original configuration until the slot
// is explicitly closed and reopened. The config is validated lazily, at open
// time.
func (r *Registry) Add(key, target string, info ConnInfo) {
	k := slot(key, target)
	r.mu.Lock()
	r.infos[k] = info.clone()
	r.mu.Unlock()
	log.Debug().Str("key", k.Key).Str("target", k.Target).Str("type", info.Type).Msg("registered connection")
}

// Clone copies the configuration of one target verbatim to another target
// under the same key, applying any option overrides on the copy. The source
// configuration is left untouched.
func (r *Registry) Clone(key, fromTarget, toTarget string, overrides map[string]string) error {
	from := slot(key, fromTarget)
	to := slot(key, toTarget)
	r.mu.Lock()
	info, ok := r.infos[from]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotConfigured, from)
	}
	cloned := info.clone()
	if len(overrides) > 0 && cloned.Options == nil {
		cloned.Options = make(map[string]string, len(overrides))
	}
	for name, value := range overrides {
		cloned.Options[name] = value
	}
	r.infos[to] = cloned
	r.mu.Unlock()
	log.Debug().Str("key", to.Key).Str("target", to.Target).Str("from", from.Target).Msg("cloned connection config")
	return nil
}

// Info returns a copy of the configuration registered for a slot.
func (r *Registry) Info(key, target string) (ConnInfo, bool) {
	k := slot(key, target)
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.infos[k]
	if !ok {
		return ConnInfo{}, false
	}
	return info.clone(), true
}

// Infos returns a snapshot copy of all targets registered under a key.
// Mutating the result does not affect registry state.
func (r *Registry) Infos(key string) map[string]ConnInfo {
	if key == "" {
		key = DefaultKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]ConnInfo)
	for k, info := range r.infos {
		if k.Key == key {
			out[k.Target] = info.clone()
		}
	}
	return out
}

// Get returns the cached open Driver for a slot, opening it on first use.
// Repeated calls without an intervening Close return the same handle (and
// therefore the same server session). Concurrent calls on a cold slot share
// one dial; exactly one session is created.
func (r *Registry) Get(ctx context.Context, key, target string) (Driver, error) {
	k := slot(key, target)
	r.mu.Lock()
	if d, ok := r.drivers[k]; ok {
		r.mu.Unlock()
		return d, nil
	}
	info, ok := r.infos[k]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, k)
	}

	v, err, _ := r.dials.Do(flightKey(k), func() (any, error) {
		d, err := open(ctx, info)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		if existing, ok := r.drivers[k]; ok {
			// Lost a race with another open on the same slot; keep the
			// cached driver and discard ours.
			r.mu.Unlock()
			d.Close()
			return existing, nil
		}
		if _, ok := r.infos[k]; !ok {
			// The slot was removed while we were dialing. Caching the
			// driver now would resurrect a slot with no configuration.
			r.mu.Unlock()
			d.Close()
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, k)
		}
		r.drivers[k] = d
		r.mu.Unlock()
		return d, nil
	})
	if err != nil {
		if isConfigError(err) {
			return nil, err
		}
		// Log the full error (may contain the URI) for debugging, but
		// return only a safe message to the caller — responses must never
		// expose connection strings or credentials.
		log.Error().Err(err).Str("key", k.Key).Str("target", k.Target).Str("type", info.Type).Msg("connect failed")
		return nil, fmt.Errorf("%w to %s (%s); check server logs for details", ErrConnect, k, info.Type)
	}
	return v.(Driver), nil
}

// flightKey returns an unambiguous dial-deduplication key for a slot.
// TargetKey.String is for display; "/" is legal inside keys and targets, so
// the display form can collide across distinct slots.
func flightKey(k TargetKey) string {
	return fmt.Sprintf("%q/%q", k.Key, k.Target)
}

// isConfigError reports whether err is a local configuration problem, which
// carries no credentials and is safe to surface verbatim.
func isConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrUnsupportedType) || errors.Is(err, ErrNotConfigured)
}

// Close terminates the open driver for a slot, if any, and evicts the cache
// entry. Idempotent: closing a slot that is not open is a no-op, and a driver
// reporting its session already gone is treated as success. After Close
// returns, a subsequent Get opens a fresh session.
func (r *Registry) Close(key, target string) {
	k := slot(key, target)
	r.mu.Lock()
	d, ok := r.drivers[k]
	delete(r.drivers, k)
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := d.Close(); err != nil && !isClosedConn(err) {
		log.Warn().Err(err).Str("key", k.Key).Str("target", k.Target).Msg("close connection")
		return
	}
	log.Debug().Str("key", k.Key).Str("target", k.Target).Msg("closed connection")
}

// Remove deletes the slot's configuration and evicts its open driver, if any,
// in one critical section, so a concurrent Get cannot reopen the slot between
// the eviction and the config delete. The evicted driver is closed after the
// lock is released. No-op if the slot was never registered.
func (r *Registry) Remove(key, target string) {
	k := slot(key, target)
	r.mu.Lock()
	d, ok := r.drivers[k]
	delete(r.drivers, k)
	delete(r.infos, k)
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := d.Close(); err != nil && !isClosedConn(err) {
		log.Warn().Err(err).Str("key", k.Key).Str("target", k.Target).Msg("close connection")
	}
}

// CloseAll closes every cached driver. Call when shutting down.
// Configurations stay registered.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	drivers := make(map[TargetKey]Driver, len(r.drivers))
	for k, d := range r.drivers {
		drivers[k] = d
		delete(r.drivers, k)
	}
	r.mu.Unlock()
	for k, d := range drivers {
		if err := d.Close(); err != nil && !isClosedConn(err) {
			log.Warn().Err(err).Str("key", k.Key).Str("target", k.Target).Msg("close connection")
		}
	}
}
