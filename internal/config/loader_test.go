package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestConfigDir(t *testing.T) string {
	tmpDir := t.TempDir()

	plugsConfig := `plugs:
  Q12345678:
    name: "Aquarium Pump"
  Q87654321:
    name: ""
exclude:
  - "Q00000000"
`
	err := os.WriteFile(filepath.Join(tmpDir, PlugsFile), []byte(plugsConfig), 0644)
	require.NoError(t, err)

	return tmpDir
}

func TestLoader_LoadPlugsConfig(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	configDir := setupTestConfigDir(t)

	loader := NewLoader(configDir, logger)
	err := loader.LoadPlugsConfig()
	require.NoError(t, err)

	config := loader.GetPlugsConfig()
	assert.Len(t, config.Plugs, 2)
	assert.Equal(t, []string{"Q00000000"}, config.Exclude)
	assert.Equal(t, map[string]string{"Q12345678": "Aquarium Pump"}, config.Names())
}

func TestLoader_MissingFile(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	configDir := t.TempDir() // Empty directory

	loader := NewLoader(configDir, logger)
	err := loader.LoadPlugsConfig()
	require.NoError(t, err)

	config := loader.GetPlugsConfig()
	assert.Empty(t, config.Plugs)
	assert.Empty(t, config.Exclude)
}

func TestLoader_InvalidYAML(t *testing.T) {
	logger := zap.NewNop()
	configDir := t.TempDir()
	err := os.WriteFile(filepath.Join(configDir, PlugsFile), []byte("plugs: [unterminated"), 0644)
	require.NoError(t, err)

	loader := NewLoader(configDir, logger)
	err = loader.LoadPlugsConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse plugs config")
}

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range []string{"POLL_INTERVAL", "API_PORT", "CONFIG_DIR", "MQTT_DISCOVERY_PREFIX", "READ_ONLY", "HA_URL", "HA_TOKEN", "MQTT_BROKER"} {
			t.Setenv(key, "")
		}
		t.Setenv("EZVIZ_USERNAME", "user")
		t.Setenv("EZVIZ_PASSWORD", "pass")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, "user", cfg.Username)
		assert.Equal(t, "pass", cfg.Password)
		assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
		assert.Equal(t, DefaultAPIPort, cfg.APIPort)
		assert.Equal(t, DefaultConfigDir, cfg.ConfigDir)
		assert.Equal(t, DefaultMQTTDiscoveryPrefix, cfg.MQTTDiscoveryPrefix)
		assert.False(t, cfg.ReadOnly)
		assert.False(t, cfg.HAEnabled())
		assert.False(t, cfg.MQTTEnabled())
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("POLL_INTERVAL", "1m")
		t.Setenv("API_PORT", "0")
		t.Setenv("READ_ONLY", "true")
		t.Setenv("HA_URL", "ws://ha.local:8123/api/websocket")
		t.Setenv("HA_TOKEN", "token")
		t.Setenv("MQTT_BROKER", "tcp://broker:1883")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, time.Minute, cfg.PollInterval)
		assert.Equal(t, 0, cfg.APIPort)
		assert.True(t, cfg.ReadOnly)
		assert.True(t, cfg.HAEnabled())
		assert.True(t, cfg.MQTTEnabled())
	})

	t.Run("invalid values", func(t *testing.T) {
		tests := []struct {
			key   string
			value string
		}{
			{"POLL_INTERVAL", "soon"},
			{"POLL_INTERVAL", "-5s"},
			{"API_PORT", "http"},
			{"API_PORT", "70000"},
		}
		for _, tt := range tests {
			t.Run(tt.key+"="+tt.value, func(t *testing.T) {
				t.Setenv("POLL_INTERVAL", "")
				t.Setenv("API_PORT", "")
				t.Setenv(tt.key, tt.value)

				_, err := FromEnv()
				assert.Error(t, err)
			})
		}
	})
}
