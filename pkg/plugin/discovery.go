package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// manifestExts are the accepted manifest extensions, in lookup order.
var manifestExts = []string{".yaml", ".yml", ".json"}

// DiscoveredPlugin is a manifest file found in the plugin directory
type DiscoveredPlugin struct {
	Name         string
	ManifestPath string
}

// IsManifestFile reports whether path looks like a plugin manifest.
func IsManifestFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range manifestExts {
		if ext == e {
			return true
		}
	}
	return false
}

// NameFromPath derives the source name of a manifest: its file name
// without extension.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Discover lists manifests in dir sorted by file name. Sub
// directories are not descended into.
func Discover(dir string) ([]DiscoveredPlugin, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin directory: %w", err)
	}

	var discovered []DiscoveredPlugin
	for _, entry := range entries {
		if entry.IsDir() || !IsManifestFile(entry.Name()) {
			continue
		}
		discovered = append(discovered, DiscoveredPlugin{
			Name:         NameFromPath(entry.Name()),
			ManifestPath: filepath.Join(dir, entry.Name()),
		})
	}

	sort.Slice(discovered, func(i, j int) bool {
		return discovered[i].ManifestPath < discovered[j].ManifestPath
	})
	return discovered, nil
}

// resolveManifest finds the manifest for name in dir. name may be a bare
// source name or a file name.
func resolveManifest(dir, name string) (string, error) {
	if IsManifestFile(name) {
		path := filepath.Join(dir, filepath.Base(name))
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("manifest %s: %w", path, err)
		}
		return path, nil
	}

	for _, ext := range manifestExts {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no manifest for %q in %s: %w", name, dir, ErrNotFound)
}
