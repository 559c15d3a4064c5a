package plugin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// LoadRecorder observes plugin load attempts. A nil error means success.
type LoadRecorder interface {
	RecordPluginLoad(name string, err error)
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	Dir      string
	Registry *Registry
	Catalog  *Catalog
	Recorder LoadRecorder
	// Overrides are merged over each manifest's config section, keyed by
	// source name.
	Overrides map[string]map[string]any
}

// Loader builds plugins from manifests and keeps the registry in sync with
// the plugin directory.
type Loader struct {
	dir       string
	registry  *Registry
	catalog   *Catalog
	manifests *ManifestLoader
	recorder  LoadRecorder
	overrides map[string]map[string]any
	logger    zerolog.Logger
}

// NewLoader creates a plugin loader
func NewLoader(cfg LoaderConfig, logger zerolog.Logger) *Loader {
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = NewCatalog()
	}
	return &Loader{
		dir:       cfg.Dir,
		registry:  cfg.Registry,
		catalog:   cfg.Catalog,
		manifests: NewManifestLoader(logger),
		recorder:  cfg.Recorder,
		overrides: cfg.Overrides,
		logger:    logger.With().Str("component", "plugin-loader").Logger(),
	}
}

// Registry returns the registry the loader maintains.
func (l *Loader) Registry() *Registry {
	return l.registry
}

// Dir returns the plugin directory.
func (l *Loader) Dir() string {
	return l.dir
}

// LoadAll rebuilds the registry from every manifest in the directory. Bad
// manifests are logged and skipped; the registry is swapped in one step.
func (l *Loader) LoadAll(ctx context.Context) (*LoadResult, error) {
	discovered, err := Discover(l.dir)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{Errors: make(map[string]error)}
	plugins := make([]*Plugin, 0, len(discovered))
	seen := make(map[string]bool, len(discovered))

	for _, d := range discovered {
		if err := ctx.Err(); err != nil {
			closeAll(plugins)
			return nil, err
		}

		if seen[d.Name] {
			l.logger.Warn().
				Str("plugin", d.Name).
				Str("path", d.ManifestPath).
				Msg("Duplicate plugin name, skipping")
			result.Skipped = append(result.Skipped, d.ManifestPath)
			continue
		}

		p, err := l.Build(d.ManifestPath)
		l.record(d.Name, err)
		if err != nil {
			if errors.Is(err, errDisabled) {
				result.Skipped = append(result.Skipped, d.Name)
				continue
			}
			l.logger.Error().Err(err).Str("plugin", d.Name).Msg("Failed to load plugin")
			result.Failed = append(result.Failed, d.Name)
			result.Errors[d.Name] = err
			continue
		}

		seen[d.Name] = true
		plugins = append(plugins, p)
		result.Loaded = append(result.Loaded, d.Name)
		l.logger.Debug().Str("plugin", d.Name).Str("primary", p.PrimaryName()).Msg("Plugin loaded")
	}

	old := l.registry.Replace(plugins)
	closeAll(old)

	l.logger.Info().
		Int("loaded", len(result.Loaded)).
		Int("failed", len(result.Failed)).
		Int("skipped", len(result.Skipped)).
		Msg("Plugins loaded")

	return result, nil
}

// LoadOne loads a single plugin by source name or file name, replacing a
// registered plugin of the same name in place.
func (l *Loader) LoadOne(ctx context.Context, name string) (*Plugin, error) {
	return l.load(ctx, name, "loaded")
}

// Reload re-reads a plugin from disk. On failure the registered version
// is kept.
func (l *Loader) Reload(ctx context.Context, name string) (*Plugin, error) {
	return l.load(ctx, name, "reloaded")
}

func (l *Loader) load(ctx context.Context, name, action string) (*Plugin, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := resolveManifest(l.dir, name)
	if err != nil {
		return nil, err
	}
	name = NameFromPath(path)

	p, err := l.Build(path)
	l.record(name, err)
	if err != nil {
		if errors.Is(err, errDisabled) {
			if _, rmErr := l.Remove(name); rmErr != nil && !errors.Is(rmErr, ErrNotFound) {
				return nil, rmErr
			}
			return nil, err
		}
		l.logger.Error().Err(err).Str("plugin", name).Msg("Failed to load plugin, keeping previous version")
		return nil, err
	}

	old, replaced := l.registry.Upsert(p)
	if replaced {
		old.Close()
	}

	l.logger.Info().
		Str("plugin", name).
		Bool("replaced", replaced).
		Msgf("Plugin %s", action)

	return p, nil
}

// Remove unregisters a plugin by source name or file name.
func (l *Loader) Remove(name string) (*Plugin, error) {
	if IsManifestFile(name) {
		name = NameFromPath(name)
	}

	old, err := l.registry.Remove(name)
	if err != nil {
		return nil, err
	}
	old.Close()

	l.logger.Info().Str("plugin", name).Msg("Plugin removed")
	return old, nil
}

var errDisabled = errors.New("plugin disabled")

// Build constructs a plugin from a manifest path without registering it.
func (l *Loader) Build(path string) (*Plugin, error) {
	manifest, err := l.manifests.LoadManifest(path)
	if err != nil {
		return nil, err
	}

	name := NameFromPath(path)
	if manifest.Disabled {
		return nil, fmt.Errorf("%s: %w", name, errDisabled)
	}

	matcher, err := NewRegexpMatcher(manifest.Command, manifest.CaseSensitive)
	if err != nil {
		return nil, fmt.Errorf("%w: command pattern: %v", ErrInvalidManifest, err)
	}

	config := mergeConfig(manifest.Config, l.overrides[name])

	p := &Plugin{
		Name:        name,
		Source:      path,
		Kind:        manifest.Kind(),
		Help:        manifest.Help,
		Tags:        manifest.Tags,
		Description: manifest.Description,
		Matcher:     matcher,
		Config:      config,
		LoadedAt:    time.Now(),
	}

	switch p.Kind {
	case KindExec:
		bin := manifest.Exec
		if !filepath.IsAbs(bin) {
			bin = filepath.Join(filepath.Dir(path), bin)
		}
		impl, kill, err := launchExec(bin)
		if err != nil {
			return nil, err
		}
		p.Handler = &execHandler{name: name, impl: impl, config: config}
		p.closer = kill
	default:
		h, err := l.catalog.Build(manifest.Handler, config)
		if err != nil {
			return nil, err
		}
		p.Handler = h
	}

	return p, nil
}

// Close unregisters every plugin and stops exec plugin processes.
func (l *Loader) Close() {
	closeAll(l.registry.Replace(nil))
}

func (l *Loader) record(name string, err error) {
	if l.recorder != nil && !errors.Is(err, errDisabled) {
		l.recorder.RecordPluginLoad(name, err)
	}
}

func mergeConfig(base, override map[string]any) map[string]any {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

func closeAll(plugins []*Plugin) {
	for _, p := range plugins {
		p.Close()
	}
}
