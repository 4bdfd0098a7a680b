// Package mqtt announces plugs to Home Assistant through MQTT discovery and
// carries their state and commands over MQTT topics.
package mqtt

import (
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	qos            = 1
	connectTimeout = 10 * time.Second
	tokenTimeout   = 5 * time.Second
)

// Client is the subset of paho.Client the sink uses
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

// BrokerConfig holds the broker connection settings
type BrokerConfig struct {
	Broker   string
	Username string
	Password string
}

// Connect dials the broker and returns a connected paho client. A broker
// given as host:port is reached over tcp.
func Connect(cfg BrokerConfig, logger *zap.Logger) (paho.Client, error) {
	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	clientID := "ezvizswitch-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	logger.Info("Connecting to MQTT broker",
		zap.String("broker", broker),
		zap.String("client_id", clientID))

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("MQTT connection lost", zap.Error(err))
		})

	client := paho.NewClient(opts)
	if err := wait(client.Connect(), connectTimeout); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, err)
	}

	logger.Info("Connected to MQTT broker")
	return client, nil
}

func wait(token paho.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timed out after %s", timeout)
	}
	return token.Error()
}
