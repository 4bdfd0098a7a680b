package plugin

import (
	"ezvizswitch/internal/config"
	"ezvizswitch/pkg/entity"

	"go.uber.org/zap"
)

// Context carries the host services handed to every plugin factory.
type Context struct {
	// Logger is the root logger. Plugins namespace it with Named.
	Logger *zap.Logger

	// Entities is the host entity registry. Plugins register through
	// Entities.Add, which satisfies entity.AddEntitiesFunc.
	Entities *entity.Registry

	// Config is the process configuration read from the environment.
	Config *config.Config

	// Plugs holds the per-device overrides from plugs.yaml.
	Plugs *config.PlugsConfig
}

// NewContext creates a plugin context. A nil plugs config is replaced by
// an empty one.
func NewContext(logger *zap.Logger, entities *entity.Registry, cfg *config.Config, plugs *config.PlugsConfig) *Context {
	if plugs == nil {
		plugs = &config.PlugsConfig{}
	}
	return &Context{
		Logger:   logger,
		Entities: entities,
		Config:   cfg,
		Plugs:    plugs,
	}
}

// ReadOnly reports whether commands must be logged instead of sent.
func (c *Context) ReadOnly() bool {
	return c.Config != nil && c.Config.ReadOnly
}
