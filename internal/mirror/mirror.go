// Package mirror keeps one Home Assistant input_boolean per plug in sync
// with the plug, in both directions.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"ezvizswitch/internal/ha"
	"ezvizswitch/internal/plug"
	"ezvizswitch/pkg/entity"

	"go.uber.org/zap"
)

// HelperName returns the input_boolean object id mirroring the plug with
// the given serial.
func HelperName(serial string) string {
	return "ezviz_" + strings.ToLower(serial)
}

// Mirror is a poller sink writing plug states to Home Assistant helpers.
// Toggling a helper in Home Assistant sends the matching command to the
// plug.
type Mirror struct {
	client   ha.HAClient
	registry *entity.Registry
	logger   *zap.Logger

	mu        sync.Mutex
	published map[string]bool
	subs      map[string]ha.Subscription
}

// New creates a mirror writing through client
func New(client ha.HAClient, registry *entity.Registry, logger *zap.Logger) *Mirror {
	return &Mirror{
		client:    client,
		registry:  registry,
		logger:    logger.Named("mirror"),
		published: make(map[string]bool),
		subs:      make(map[string]ha.Subscription),
	}
}

// Name implements poller.Sink
func (m *Mirror) Name() string {
	return "ha_mirror"
}

// Publish writes snap to its helper unless both the last written state and
// the helper's current state already match. The first publish for a plug
// also subscribes to its helper.
func (m *Mirror) Publish(ctx context.Context, snap entity.Snapshot) error {
	if err := m.watch(snap.UniqueID); err != nil {
		return err
	}

	m.mu.Lock()
	last, seen := m.published[snap.UniqueID]
	m.mu.Unlock()
	if seen && last == snap.On && m.helperMatches(snap.UniqueID, snap.On) {
		return nil
	}

	m.mu.Lock()
	// Recorded before the call so the echo of our own write is recognized.
	m.published[snap.UniqueID] = snap.On
	m.mu.Unlock()

	if err := m.client.SetInputBoolean(HelperName(snap.UniqueID), snap.On); err != nil {
		m.mu.Lock()
		if seen {
			m.published[snap.UniqueID] = last
		} else {
			delete(m.published, snap.UniqueID)
		}
		m.mu.Unlock()
		return fmt.Errorf("failed to mirror %s: %w", snap.UniqueID, err)
	}

	m.logger.Debug("Mirrored plug state",
		zap.String("serial", snap.UniqueID),
		zap.Bool("on", snap.On))
	return nil
}

// helperMatches reports whether the helper in Home Assistant currently
// shows the given state. A helper that cannot be read never matches.
func (m *Mirror) helperMatches(id string, on bool) bool {
	state, err := m.client.GetState("input_boolean." + HelperName(id))
	if err != nil {
		m.logger.Debug("Could not read helper state", zap.String("serial", id), zap.Error(err))
		return false
	}
	return state.State == onOff(on)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func (m *Mirror) watch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[id]; ok {
		return nil
	}

	entityID := "input_boolean." + HelperName(id)
	sub, err := m.client.SubscribeStateChanges(entityID, func(_ string, _, newState *ha.State) {
		m.handleToggle(id, newState)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", entityID, err)
	}
	m.subs[id] = sub
	return nil
}

func (m *Mirror) handleToggle(id string, newState *ha.State) {
	if newState == nil {
		return
	}

	var on bool
	switch newState.State {
	case "on":
		on = true
	case "off":
		on = false
	default:
		return
	}

	m.mu.Lock()
	last, seen := m.published[id]
	m.mu.Unlock()
	if seen && last == on {
		return
	}

	m.logger.Info("Helper toggled in Home Assistant",
		zap.String("serial", id),
		zap.Bool("on", on))

	err := m.registry.Set(context.Background(), id, on)
	if err != nil {
		// The helper now disagrees with the plug; force a rewrite on the next poll.
		m.forget(id)
	}

	switch {
	case err == nil:
	case errors.Is(err, plug.ErrReadOnlyMode):
		m.logger.Debug("READ-ONLY: not sending command", zap.String("serial", id), zap.Bool("on", on))
	default:
		m.logger.Error("Failed to apply helper toggle",
			zap.String("serial", id),
			zap.Bool("on", on),
			zap.Error(err))
	}
}

func (m *Mirror) forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.published, id)
}

// Close drops all helper subscriptions
func (m *Mirror) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, sub := range m.subs {
		if err := sub.Unsubscribe(); err != nil {
			m.logger.Warn("Failed to unsubscribe", zap.String("serial", id), zap.Error(err))
		}
	}
	m.subs = make(map[string]ha.Subscription)
}
