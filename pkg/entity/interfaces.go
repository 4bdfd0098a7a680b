// Package entity defines the switch capabilities a platform exposes to the
// host and the registry the host uses to track and drive them. Platforms
// implement the interfaces; they never embed host types.
package entity

import "context"

// ReadableSwitch exposes the last known on/off state.
type ReadableSwitch interface {
	// IsOn reports the cached state. It performs no I/O.
	IsOn() bool
}

// WritableSwitch accepts on/off commands.
type WritableSwitch interface {
	// TurnOn asks the device to switch on.
	TurnOn(ctx context.Context) error

	// TurnOff asks the device to switch off.
	TurnOff(ctx context.Context) error
}

// Switch is a host-managed switch entity.
type Switch interface {
	ReadableSwitch
	WritableSwitch

	// UniqueID is the stable key of the entity. It never changes.
	UniqueID() string

	// Name is the display name, which may change on Refresh.
	Name() string

	// Refresh re-reads the device and updates the cached state.
	Refresh(ctx context.Context) error
}

// Availability is an optional interface for switches that know whether
// the underlying device is reachable.
type Availability interface {
	// Available returns false when the device reported itself offline.
	Available() bool
}

// AddEntitiesFunc is the registration callback handed to platforms.
type AddEntitiesFunc func(switches ...Switch) error

// Snapshot is a point-in-time view of one entity
type Snapshot struct {
	UniqueID  string `json:"unique_id"`
	Name      string `json:"name"`
	On        bool   `json:"on"`
	Available bool   `json:"available"`
}

// SnapshotOf reads the cached state of s without I/O.
func SnapshotOf(s Switch) Snapshot {
	available := true
	if a, ok := s.(Availability); ok {
		available = a.Available()
	}
	return Snapshot{
		UniqueID:  s.UniqueID(),
		Name:      s.Name(),
		On:        s.IsOn(),
		Available: available,
	}
}
