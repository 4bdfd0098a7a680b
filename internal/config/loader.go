package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// PlugsFile is the optional per-plug configuration file name
const PlugsFile = "plugs.yaml"

// PlugOverride customizes one plug
type PlugOverride struct {
	Name string `yaml:"name"`
}

// PlugsConfig represents the plugs.yaml structure
type PlugsConfig struct {
	// Plugs maps device serials to overrides.
	Plugs map[string]PlugOverride `yaml:"plugs"`

	// Exclude lists serials that are never exposed.
	Exclude []string `yaml:"exclude"`
}

// Names returns the serial to display name overrides
func (c *PlugsConfig) Names() map[string]string {
	names := make(map[string]string, len(c.Plugs))
	for serial, override := range c.Plugs {
		if override.Name != "" {
			names[serial] = override.Name
		}
	}
	return names
}

// Loader manages configuration file loading
type Loader struct {
	configDir   string
	logger      *zap.Logger
	plugsConfig *PlugsConfig
}

// NewLoader creates a new configuration loader
func NewLoader(configDir string, logger *zap.Logger) *Loader {
	return &Loader{
		configDir: configDir,
		logger:    logger,
	}
}

// LoadPlugsConfig loads plugs.yaml. A missing file is not an error and
// yields an empty configuration.
func (l *Loader) LoadPlugsConfig() error {
	path := filepath.Join(l.configDir, PlugsFile)
	l.logger.Debug("Loading plugs config", zap.String("path", path))

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		l.logger.Info("No plugs config found, using account names", zap.String("path", path))
		l.plugsConfig = &PlugsConfig{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read plugs config: %w", err)
	}

	var config PlugsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse plugs config: %w", err)
	}

	l.plugsConfig = &config
	l.logger.Info("Plugs config loaded successfully",
		zap.Int("overrides", len(config.Plugs)),
		zap.Int("excluded", len(config.Exclude)))
	return nil
}

// GetPlugsConfig returns the loaded plugs configuration, empty if not loaded
func (l *Loader) GetPlugsConfig() *PlugsConfig {
	if l.plugsConfig == nil {
		return &PlugsConfig{}
	}
	return l.plugsConfig
}
