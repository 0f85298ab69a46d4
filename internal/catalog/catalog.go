// ABOUTME: Static tool catalogue shared by every protocol adapter.
// ABOUTME: Loaded once at startup; the single source of truth for validation.

package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrToolCollision indicates a tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// Schema is a structural parameter schema in JSON Schema vocabulary.
// Adapters project it into their own dialects; the dispatcher validates
// arguments against it.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Format      string             `json:"format,omitempty"`
}

// Handler executes one tool call against the upstream API.
// The token is the resolved upstream access credential. Failures are
// signaled by returning an error whose message is surfaced to the caller.
type Handler func(ctx context.Context, args map[string]any, token string) (any, error)

// Definition describes one tool: its unique name, parameter schema, and
// human-readable description. Immutable after registration.
type Definition struct {
	Name        string
	Description string
	InputSchema *Schema
}

// Tool pairs a definition with its handler.
type Tool struct {
	Definition Definition
	Handler    Handler

	// SkipCredentials marks reflective tools that dispatch without an
	// upstream token, bypassing credential resolution entirely.
	SkipCredentials bool
}

// Catalog holds the fixed set of tools known at process start.
// Registration happens during startup only; afterwards the catalogue is
// read-only and safe for unsynchronized concurrent reads.
type Catalog struct {
	tools  map[string]*Tool
	order  []string
	logger *slog.Logger
}

// New creates an empty catalogue.
func New(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
}

// Register adds a tool to the catalogue.
// Returns ErrToolCollision if the name is already taken.
func (c *Catalog) Register(t *Tool) error {
	name := t.Definition.Name
	if name == "" {
		return errors.New("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", name)
	}
	if _, exists := c.tools[name]; exists {
		return fmt.Errorf("%w: %q", ErrToolCollision, name)
	}

	c.tools[name] = t
	c.order = append(c.order, name)

	c.logger.Debug("tool registered", "tool_name", name)
	return nil
}

// RegisterAll registers a batch of tools, stopping on the first collision.
func (c *Catalog) RegisterAll(tools []*Tool) error {
	for _, t := range tools {
		if err := c.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the tool with the given name, or nil if not registered.
func (c *Catalog) Get(name string) *Tool {
	return c.tools[name]
}

// Definitions returns all tool definitions in registration order.
func (c *Catalog) Definitions() []Definition {
	defs := make([]Definition, 0, len(c.order))
	for _, name := range c.order {
		defs = append(defs, c.tools[name].Definition)
	}
	return defs
}

// Names returns all registered tool names in registration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Describe returns the description for a tool name.
func (c *Catalog) Describe(name string) (string, bool) {
	t, ok := c.tools[name]
	if !ok {
		return "", false
	}
	return t.Definition.Description, true
}

// Len returns the number of registered tools.
func (c *Catalog) Len() int {
	return len(c.tools)
}
