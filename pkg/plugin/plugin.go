package plugin

import (
	"context"
	"log/slog"
)

// Plugin defines the lifecycle hooks that each plugin implementation must satisfy.
type Plugin interface {
	// Info returns the static metadata for the plugin.
	Info() Info
	// Configure allows the plugin to inspect its configuration block prior to initialisation.
	// Implementations may mutate the configuration map to inject defaults.
	Configure(cfg map[string]any) error
	// Init prepares the plugin for use. Shared services are read from ctx.Resources.
	Init(ctx *ExecutionContext) error
	// Start activates the plugin and should spawn long running routines if required.
	Start(ctx *ExecutionContext) error
	// Stop gracefully halts the plugin and releases any resources.
	Stop(ctx *ExecutionContext) error
	// Components lists the actions, providers and evaluators the plugin contributes.
	Components() Components
}

// Components groups everything a plugin hands to the agent runtime.
type Components struct {
	Actions    []Action
	Providers  []Provider
	Evaluators []Evaluator
}

// Merge appends other to c.
func (c Components) Merge(other Components) Components {
	c.Actions = append(c.Actions, other.Actions...)
	c.Providers = append(c.Providers, other.Providers...)
	c.Evaluators = append(c.Evaluators, other.Evaluators...)
	return c
}

// ExecutionContext is passed to plugins for every lifecycle stage.
type ExecutionContext struct {
	// C is the underlying context for cancellation and deadlines.
	C context.Context
	// Config is the plugin specific configuration block merged with manager overrides.
	Config map[string]any
	// Resources exposes shared services supplied by the host application.
	Resources map[string]any
}

// Clone returns a shallow copy of the execution context so plugins can safely mutate maps.
func (c *ExecutionContext) Clone() *ExecutionContext {
	if c == nil {
		return nil
	}
	dup := *c
	dup.Config = cloneConfig(c.Config)
	if c.Resources != nil {
		dup.Resources = make(map[string]any, len(c.Resources))
		for k, v := range c.Resources {
			dup.Resources[k] = v
		}
	}
	return &dup
}

// Logger returns the host logger resource, or slog.Default when none was supplied.
func (c *ExecutionContext) Logger() *slog.Logger {
	if c != nil {
		if l, ok := c.Resources[ResourceLogger].(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// String reads a string value from the plugin config block.
func (c *ExecutionContext) String(key string) string {
	if c == nil {
		return ""
	}
	if v, ok := c.Config[key].(string); ok {
		return v
	}
	return ""
}

// Option modifies the behaviour of a plugin manager instance.
type Option func(*Manager)

// WithLoader overrides the default binary loader implementation.
func WithLoader(loader Loader) Option {
	return func(m *Manager) {
		if loader != nil {
			m.loader = loader
		}
	}
}

// WithIsolationStrategy sets a custom isolation policy enforcement strategy.
func WithIsolationStrategy(strategy IsolationStrategy) Option {
	return func(m *Manager) {
		if strategy != nil {
			m.isolation = strategy
		}
	}
}

// WithResource registers a shared resource that will be exposed to all plugins.
func WithResource(key string, value any) Option {
	return func(m *Manager) {
		if key == "" || value == nil {
			return
		}
		if m.resources == nil {
			m.resources = make(map[string]any)
		}
		m.resources[key] = value
	}
}
