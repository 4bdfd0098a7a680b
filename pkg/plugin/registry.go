package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// PriorityDefault is used by the platforms shipped in this module.
	PriorityDefault = 0

	// PriorityOverride lets another build replace a default platform.
	PriorityOverride = 100

	defaultOrder = 50
)

// PluginInfo describes a registered platform.
type PluginInfo struct {
	Name        string
	Description string

	// Priority decides between registrations sharing a name. The higher
	// one wins; on a tie the later registration wins.
	Priority int

	Factory Factory

	// Order is the start order, lower first. Zero means 50.
	Order int
}

// Registry holds platform registrations.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]PluginInfo
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]PluginInfo),
	}
}

// Register adds info, or replaces an existing registration of the same
// name with lower or equal priority. Registrations with lower priority
// than the existing one are ignored.
func (r *Registry) Register(info PluginInfo) error {
	if info.Name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}
	if info.Factory == nil {
		return fmt.Errorf("plugin %s: factory cannot be nil", info.Name)
	}
	if info.Order == 0 {
		info.Order = defaultOrder
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.plugins[info.Name]
	if exists && info.Priority < existing.Priority {
		return nil
	}

	r.plugins[info.Name] = info
	if !exists {
		r.order = append(r.order, info.Name)
	}
	return nil
}

// Get returns the registration for name, or nil.
func (r *Registry) Get(name string) *PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.plugins[name]
	if !ok {
		return nil
	}
	return &info
}

// List returns registrations sorted by Order, then name.
func (r *Registry) List() []PluginInfo {
	r.mu.RLock()
	result := make([]PluginInfo, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.plugins[name])
	}
	r.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// CreateAll runs every factory in start order. If one fails, the plugins
// created so far are stopped and nothing is returned.
func (r *Registry) CreateAll(ctx *Context) ([]Plugin, error) {
	infos := r.List()
	result := make([]Plugin, 0, len(infos))

	for _, info := range infos {
		p, err := info.Factory(ctx)
		if err != nil {
			StopAll(result)
			return nil, fmt.Errorf("failed to create plugin %s: %w", info.Name, err)
		}
		result = append(result, p)
	}
	return result, nil
}

// StartAll starts plugins in order. A plugin that fails to start is logged
// and skipped so the others keep running; the returned slice holds only
// started plugins and the error combines every failure.
func StartAll(ctx context.Context, plugins []Plugin, logger *zap.Logger) ([]Plugin, error) {
	started := make([]Plugin, 0, len(plugins))
	var errs error

	for _, p := range plugins {
		if err := p.Start(ctx); err != nil {
			logger.Error("Failed to start plugin", zap.String("plugin", p.Name()), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("start %s: %w", p.Name(), err))
			continue
		}
		fields := []zap.Field{zap.String("plugin", p.Name())}
		if provider, ok := p.(EntityProvider); ok {
			ids := provider.EntityIDs()
			fields = append(fields, zap.Int("entities", len(ids)), zap.Strings("entity_ids", ids))
		}
		logger.Info("Plugin started", fields...)
		started = append(started, p)
	}
	return started, errs
}

// StopAll stops plugins in reverse order.
func StopAll(plugins []Plugin) {
	for i := len(plugins) - 1; i >= 0; i-- {
		plugins[i].Stop()
	}
}

var globalRegistry = NewRegistry()

// Register adds a platform to the global registry. Call it from init().
func Register(info PluginInfo) error {
	return globalRegistry.Register(info)
}

// Get returns a registration from the global registry.
func Get(name string) *PluginInfo {
	return globalRegistry.Get(name)
}

// List returns the global registrations in start order.
func List() []PluginInfo {
	return globalRegistry.List()
}

// CreateAll instantiates every globally registered platform.
func CreateAll(ctx *Context) ([]Plugin, error) {
	return globalRegistry.CreateAll(ctx)
}
