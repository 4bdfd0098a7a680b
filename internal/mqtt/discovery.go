package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"ezvizswitch/internal/plug"
	"ezvizswitch/pkg/entity"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	payloadOn      = "ON"
	payloadOff     = "OFF"
	payloadOnline  = "online"
	payloadOffline = "offline"
)

// Topics for one plug
type Topics struct {
	Config       string
	State        string
	Command      string
	Availability string
}

// TopicsFor returns the topics used for the plug with the given serial
func TopicsFor(prefix, serial string) Topics {
	objectID := "ezviz_" + strings.ToLower(serial)
	return Topics{
		Config:       fmt.Sprintf("%s/switch/%s/config", prefix, objectID),
		State:        fmt.Sprintf("ezviz/%s/state", serial),
		Command:      fmt.Sprintf("ezviz/%s/set", serial),
		Availability: fmt.Sprintf("ezviz/%s/availability", serial),
	}
}

// discoveryConfig is the Home Assistant MQTT switch discovery payload
type discoveryConfig struct {
	Name                string          `json:"name"`
	UniqueID            string          `json:"unique_id"`
	StateTopic          string          `json:"state_topic"`
	CommandTopic        string          `json:"command_topic"`
	AvailabilityTopic   string          `json:"availability_topic"`
	PayloadOn           string          `json:"payload_on"`
	PayloadOff          string          `json:"payload_off"`
	PayloadAvailable    string          `json:"payload_available"`
	PayloadNotAvailable string          `json:"payload_not_available"`
	Device              discoveryDevice `json:"device"`
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// announced tracks what was last sent for a plug
type announced struct {
	name      string
	on        bool
	available bool
	hasState  bool
}

// Discovery is a poller sink that announces plugs over MQTT discovery and
// routes commands received on their command topics to the registry.
type Discovery struct {
	client   Client
	registry *entity.Registry
	prefix   string
	logger   *zap.Logger

	mu    sync.Mutex
	known map[string]*announced
}

// NewDiscovery creates a discovery sink publishing under prefix
func NewDiscovery(client Client, registry *entity.Registry, prefix string, logger *zap.Logger) *Discovery {
	return &Discovery{
		client:   client,
		registry: registry,
		prefix:   prefix,
		logger:   logger.Named("mqtt"),
		known:    make(map[string]*announced),
	}
}

// Name implements poller.Sink
func (d *Discovery) Name() string {
	return "mqtt_discovery"
}

// Publish announces the plug on first sight or rename and publishes its
// state and availability when they change. All messages are retained.
func (d *Discovery) Publish(ctx context.Context, snap entity.Snapshot) error {
	topics := TopicsFor(d.prefix, snap.UniqueID)

	d.mu.Lock()
	prev, seen := d.known[snap.UniqueID]
	d.mu.Unlock()

	if !seen {
		if err := wait(d.client.Subscribe(topics.Command, qos, d.commandHandler(snap.UniqueID)), tokenTimeout); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topics.Command, err)
		}
		prev = &announced{}
	}

	next := *prev
	if !seen || prev.name != snap.Name {
		if err := d.announce(topics, snap); err != nil {
			return err
		}
		next.name = snap.Name
	}

	if !next.hasState || prev.available != snap.Available {
		if err := d.publish(topics.Availability, availabilityPayload(snap.Available)); err != nil {
			return err
		}
	}
	if !next.hasState || prev.on != snap.On {
		if err := d.publish(topics.State, statePayload(snap.On)); err != nil {
			return err
		}
	}
	next.on = snap.On
	next.available = snap.Available
	next.hasState = true

	d.mu.Lock()
	d.known[snap.UniqueID] = &next
	d.mu.Unlock()
	return nil
}

func (d *Discovery) announce(topics Topics, snap entity.Snapshot) error {
	payload, err := json.Marshal(discoveryConfig{
		Name:                snap.Name,
		UniqueID:            "ezviz_" + strings.ToLower(snap.UniqueID),
		StateTopic:          topics.State,
		CommandTopic:        topics.Command,
		AvailabilityTopic:   topics.Availability,
		PayloadOn:           payloadOn,
		PayloadOff:          payloadOff,
		PayloadAvailable:    payloadOnline,
		PayloadNotAvailable: payloadOffline,
		Device: discoveryDevice{
			Identifiers:  []string{snap.UniqueID},
			Name:         snap.Name,
			Manufacturer: "EZVIZ",
			Model:        "Smart Plug",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal discovery config: %w", err)
	}

	d.logger.Info("Announcing plug", zap.String("serial", snap.UniqueID), zap.String("topic", topics.Config))
	return d.publish(topics.Config, payload)
}

func (d *Discovery) publish(topic string, payload interface{}) error {
	if err := wait(d.client.Publish(topic, qos, true, payload), tokenTimeout); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (d *Discovery) commandHandler(id string) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		var on bool
		switch strings.ToUpper(strings.TrimSpace(string(msg.Payload()))) {
		case payloadOn:
			on = true
		case payloadOff:
			on = false
		default:
			d.logger.Warn("Ignoring unknown command payload",
				zap.String("topic", msg.Topic()),
				zap.ByteString("payload", msg.Payload()))
			return
		}

		err := d.registry.Set(context.Background(), id, on)
		switch {
		case err == nil:
			d.logger.Info("Applied MQTT command", zap.String("serial", id), zap.Bool("on", on))
		case errors.Is(err, plug.ErrReadOnlyMode):
			d.logger.Debug("READ-ONLY: not sending command", zap.String("serial", id), zap.Bool("on", on))
		default:
			d.logger.Error("Failed to apply MQTT command", zap.String("serial", id), zap.Error(err))
		}
	}
}

// Close marks every announced plug offline and drops the command
// subscriptions.
func (d *Discovery) Close() {
	d.mu.Lock()
	ids := make([]string, 0, len(d.known))
	for id := range d.known {
		ids = append(ids, id)
	}
	d.known = make(map[string]*announced)
	d.mu.Unlock()

	if len(ids) == 0 {
		return
	}

	commands := make([]string, 0, len(ids))
	for _, id := range ids {
		topics := TopicsFor(d.prefix, id)
		commands = append(commands, topics.Command)
		if err := d.publish(topics.Availability, payloadOffline); err != nil {
			d.logger.Warn("Failed to publish offline", zap.String("serial", id), zap.Error(err))
		}
	}

	if err := wait(d.client.Unsubscribe(commands...), tokenTimeout); err != nil {
		d.logger.Warn("Failed to unsubscribe command topics", zap.Error(err))
	}
}

func statePayload(on bool) string {
	if on {
		return payloadOn
	}
	return payloadOff
}

func availabilityPayload(available bool) string {
	if available {
		return payloadOnline
	}
	return payloadOffline
}
