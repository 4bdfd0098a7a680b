// Package ezviz registers the EZVIZ smart plug platform with the host.
package ezviz

import (
	"context"
	"errors"
	"sync"

	"ezvizswitch/internal/ezviz"
	"ezvizswitch/internal/plug"
	"ezvizswitch/pkg/plugin"

	"go.uber.org/zap"
)

const name = "ezviz"

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        name,
		Description: "EZVIZ smart plugs as on/off switches",
		Priority:    plugin.PriorityDefault,
		Factory:     createPlugin,
	})
}

func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	apiDomain := ""
	if ctx.Config != nil {
		apiDomain = ctx.Config.APIDomain
	}

	return NewPlatform(ctx, func(creds plug.Credentials) ezviz.SessionClient {
		return ezviz.NewClient(creds.Username, creds.Password, ctx.Logger, ezviz.WithAPIDomain(apiDomain))
	}), nil
}

// Platform is the plugin.Plugin that owns the account's plugs
type Platform struct {
	pctx       *plugin.Context
	newSession plug.NewSessionFunc
	logger     *zap.Logger

	mu    sync.Mutex
	plugs []*plug.Plug
}

// NewPlatform creates the platform with a custom session constructor
func NewPlatform(ctx *plugin.Context, newSession plug.NewSessionFunc) *Platform {
	return &Platform{
		pctx:       ctx,
		newSession: newSession,
		logger:     ctx.Logger.Named("platform.ezviz"),
	}
}

// Name implements plugin.Plugin
func (p *Platform) Name() string {
	return name
}

// Start logs in and registers one switch per plug. Missing credentials
// are only warned about and leave the platform empty.
func (p *Platform) Start(ctx context.Context) error {
	var creds plug.Credentials
	if cfg := p.pctx.Config; cfg != nil {
		creds = plug.Credentials{Username: cfg.Username, Password: cfg.Password}
	}

	opts := plug.Options{
		ReadOnly: p.pctx.ReadOnly(),
		Exclude:  p.pctx.Plugs.Exclude,
		Names:    p.pctx.Plugs.Names(),
	}

	plugs, err := plug.Setup(ctx, creds, p.newSession, p.pctx.Entities.Add, p.logger, opts)
	if errors.Is(err, plug.ErrMissingCredentials) {
		return nil
	}
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.plugs = plugs
	p.mu.Unlock()
	return nil
}

// Stop unregisters every plug added by Start
func (p *Platform) Stop() {
	ids := p.EntityIDs()

	p.mu.Lock()
	p.plugs = nil
	p.mu.Unlock()

	if len(ids) > 0 {
		p.pctx.Entities.Remove(ids...)
		p.logger.Info("Removed plugs", zap.Int("count", len(ids)))
	}
}

// EntityIDs implements plugin.EntityProvider
func (p *Platform) EntityIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, len(p.plugs))
	for i, pl := range p.plugs {
		ids[i] = pl.UniqueID()
	}
	return ids
}
