package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a handler from the manifest's config section.
type Factory func(config map[string]any) (Handler, error)

// Catalog holds the built-in handler factories manifests can refer to.
type Catalog struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register adds a factory under name.
func (c *Catalog) Register(name string, f Factory) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[name]; exists {
		return fmt.Errorf("handler %s already registered", name)
	}
	c.factories[name] = f
	return nil
}

// MustRegister is Register that panics on duplicates.
func (c *Catalog) MustRegister(name string, f Factory) {
	if err := c.Register(name, f); err != nil {
		panic(err)
	}
}

// Build instantiates the named handler.
func (c *Catalog) Build(name string, config map[string]any) (Handler, error) {
	c.mu.RLock()
	f, ok := c.factories[name]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown handler %q", name)
	}
	h, err := f(config)
	if err != nil {
		return nil, fmt.Errorf("handler %s: %w", name, err)
	}
	if h == nil {
		return nil, fmt.Errorf("handler %s: factory returned nil", name)
	}
	return h, nil
}

// Names lists registered handler names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
