package plugin

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when a plugin name is not registered.
var ErrNotFound = errors.New("plugin not found")

// Registry is the ordered plugin collection consulted by dispatch.
// Position is match priority: the first plugin whose matcher accepts the
// text wins.
type Registry struct {
	plugins []*Plugin
	index   map[string]int
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// Replace swaps the whole content for plugins, in order. Later entries
// with an already seen name are dropped. It returns the previous entries.
func (r *Registry) Replace(plugins []*Plugin) []*Plugin {
	next := make([]*Plugin, 0, len(plugins))
	index := make(map[string]int, len(plugins))
	for _, p := range plugins {
		if p == nil {
			continue
		}
		if _, dup := index[p.Name]; dup {
			continue
		}
		index[p.Name] = len(next)
		next = append(next, p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.plugins
	r.plugins = next
	r.index = index
	return old
}

// Upsert replaces the plugin with the same name at its current position,
// or appends it when new. The replaced plugin is returned.
func (r *Registry) Upsert(p *Plugin) (*Plugin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, exists := r.index[p.Name]; exists {
		old := r.plugins[i]
		// Copy on write so snapshots held by in-flight dispatches stay intact.
		next := append([]*Plugin(nil), r.plugins...)
		next[i] = p
		r.plugins = next
		return old, true
	}

	r.index[p.Name] = len(r.plugins)
	r.plugins = append(r.plugins[:len(r.plugins):len(r.plugins)], p)
	return nil, false
}

// Remove deletes the plugin with the given name and reindexes the rest.
func (r *Registry) Remove(name string) (*Plugin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, exists := r.index[name]
	if !exists {
		return nil, ErrNotFound
	}

	old := r.plugins[i]
	next := make([]*Plugin, 0, len(r.plugins)-1)
	next = append(next, r.plugins[:i]...)
	next = append(next, r.plugins[i+1:]...)

	index := make(map[string]int, len(next))
	for pos, p := range next {
		index[p.Name] = pos
	}

	r.plugins = next
	r.index = index
	return old, nil
}

// Get retrieves a plugin by source name.
func (r *Registry) Get(name string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, exists := r.index[name]
	if !exists {
		return nil, false
	}
	return r.plugins[i], true
}

// Snapshot returns the current ordered list. The slice must not be
// modified by callers.
func (r *Registry) Snapshot() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plugins
}

// Names returns the source names in priority order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.plugins))
	for i, p := range r.plugins {
		names[i] = p.Name
	}
	return names
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// Match returns the first plugin in priority order accepting text.
func Match(plugins []*Plugin, text string) *Plugin {
	for _, p := range plugins {
		if p.Matches(text) {
			return p
		}
	}
	return nil
}
