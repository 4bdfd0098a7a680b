// Package plugin is the host side of device platforms. A platform package
// registers a Factory from init(); the binary instantiates every registered
// platform with a shared Context and starts them in order. Priority lets a
// private build replace a platform of the same name at compile time.
package plugin

import "context"

// Plugin is a device platform. Start discovers devices and registers their
// entities through Context.Entities; Stop removes them again.
type Plugin interface {
	// Name returns the unique identifier used for registration and logging.
	Name() string

	// Start connects to the vendor service and registers entities. A
	// platform that cannot reach its service returns an error and leaves
	// nothing registered.
	Start(ctx context.Context) error

	// Stop unregisters the platform's entities and releases resources.
	Stop()
}

// EntityProvider is an optional interface for plugins that report the
// unique ids of the entities they registered.
type EntityProvider interface {
	EntityIDs() []string
}

// Factory creates a plugin instance from the shared context.
type Factory func(ctx *Context) (Plugin, error)
