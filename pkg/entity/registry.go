package entity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNotFound is returned for operations on an unknown unique id
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a unique id is registered twice
	ErrDuplicate = errors.New("entity already registered")
)

// entry pairs a switch with the lock that serializes calls into it
type entry struct {
	mu sync.Mutex
	sw Switch
}

// Registry tracks registered switches. Calls that reach a switch through
// the registry are serialized per entity, so a switch implementation never
// sees overlapping Refresh/TurnOn/TurnOff calls.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Add registers switches. It satisfies AddEntitiesFunc. Either all
// switches are added or none are.
func (r *Registry) Add(switches ...Switch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(switches))
	for _, sw := range switches {
		if sw == nil {
			return fmt.Errorf("cannot register nil switch")
		}
		id := sw.UniqueID()
		if id == "" {
			return fmt.Errorf("switch %q: unique id cannot be empty", sw.Name())
		}
		if _, exists := r.entries[id]; exists || seen[id] {
			return fmt.Errorf("switch %s: %w", id, ErrDuplicate)
		}
		seen[id] = true
	}

	for _, sw := range switches {
		r.entries[sw.UniqueID()] = &entry{sw: sw}
	}
	return nil
}

// Remove unregisters the given ids. Unknown ids are ignored.
func (r *Registry) Remove(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		delete(r.entries, id)
	}
}

// Get returns the switch registered under id.
func (r *Registry) Get(id string) (Switch, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.sw, true
}

// IDs returns all registered unique ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered switches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns the cached state of one switch.
func (r *Registry) Snapshot(id string) (Snapshot, error) {
	var snap Snapshot
	err := r.with(id, func(sw Switch) error {
		snap = SnapshotOf(sw)
		return nil
	})
	return snap, err
}

// Snapshots returns the cached state of every switch, sorted by unique id.
func (r *Registry) Snapshots() []Snapshot {
	ids := r.IDs()
	snaps := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := r.Snapshot(id)
		if err != nil {
			// Removed between IDs and Snapshot.
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps
}

// Refresh refreshes one switch and returns its new cached state.
func (r *Registry) Refresh(ctx context.Context, id string) (Snapshot, error) {
	var snap Snapshot
	err := r.with(id, func(sw Switch) error {
		if err := sw.Refresh(ctx); err != nil {
			return err
		}
		snap = SnapshotOf(sw)
		return nil
	})
	return snap, err
}

// TurnOn sends an on command to one switch.
func (r *Registry) TurnOn(ctx context.Context, id string) error {
	return r.with(id, func(sw Switch) error {
		return sw.TurnOn(ctx)
	})
}

// TurnOff sends an off command to one switch.
func (r *Registry) TurnOff(ctx context.Context, id string) error {
	return r.with(id, func(sw Switch) error {
		return sw.TurnOff(ctx)
	})
}

// Set turns a switch on or off.
func (r *Registry) Set(ctx context.Context, id string, on bool) error {
	if on {
		return r.TurnOn(ctx, id)
	}
	return r.TurnOff(ctx, id)
}

func (r *Registry) with(id string, fn func(Switch) error) error {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.sw)
}
