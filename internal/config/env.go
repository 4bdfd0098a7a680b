// Package config reads process configuration from the environment and the
// optional plugs.yaml file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	DefaultPollInterval        = 30 * time.Second
	DefaultAPIPort             = 8080
	DefaultMQTTDiscoveryPrefix = "homeassistant"
	DefaultConfigDir           = "./configs"
)

// Config holds everything read from the environment
type Config struct {
	Username  string
	Password  string
	APIDomain string

	PollInterval time.Duration
	ReadOnly     bool
	ConfigDir    string
	APIPort      int
	Debug        bool

	HAURL   string
	HAToken string

	MQTTBroker          string
	MQTTUsername        string
	MQTTPassword        string
	MQTTDiscoveryPrefix string
}

// HAEnabled reports whether the Home Assistant mirror is configured
func (c *Config) HAEnabled() bool {
	return c.HAURL != "" && c.HAToken != ""
}

// MQTTEnabled reports whether MQTT discovery is configured
func (c *Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// FromEnv builds a Config from environment variables. Credentials are not
// validated here; the plug platform reports them missing.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Username:            os.Getenv("EZVIZ_USERNAME"),
		Password:            os.Getenv("EZVIZ_PASSWORD"),
		APIDomain:           os.Getenv("EZVIZ_API_DOMAIN"),
		PollInterval:        DefaultPollInterval,
		ReadOnly:            os.Getenv("READ_ONLY") == "true",
		ConfigDir:           getEnvOr("CONFIG_DIR", DefaultConfigDir),
		APIPort:             DefaultAPIPort,
		Debug:               os.Getenv("LOG_LEVEL") == "debug",
		HAURL:               os.Getenv("HA_URL"),
		HAToken:             os.Getenv("HA_TOKEN"),
		MQTTBroker:          os.Getenv("MQTT_BROKER"),
		MQTTUsername:        os.Getenv("MQTT_USERNAME"),
		MQTTPassword:        os.Getenv("MQTT_PASSWORD"),
		MQTTDiscoveryPrefix: getEnvOr("MQTT_DISCOVERY_PREFIX", DefaultMQTTDiscoveryPrefix),
	}

	if raw := os.Getenv("POLL_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid POLL_INTERVAL %q: %w", raw, err)
		}
		if interval <= 0 {
			return nil, fmt.Errorf("POLL_INTERVAL must be positive, got %s", interval)
		}
		cfg.PollInterval = interval
	}

	if raw := os.Getenv("API_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port < 0 || port > 65535 {
			return nil, fmt.Errorf("invalid API_PORT %q", raw)
		}
		cfg.APIPort = port
	}

	return cfg, nil
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
