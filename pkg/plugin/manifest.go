package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ErrInvalidManifest wraps every manifest validation failure.
var ErrInvalidManifest = errors.New("invalid plugin manifest")

// Manifest is the on-disk definition of a plugin.
type Manifest struct {
	Help          []string       `json:"help" yaml:"help"`
	Tags          []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Command       string         `json:"command" yaml:"command"`
	CaseSensitive bool           `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`
	Description   string         `json:"description,omitempty" yaml:"description,omitempty"`
	Handler       string         `json:"handler,omitempty" yaml:"handler,omitempty"`
	Exec          string         `json:"exec,omitempty" yaml:"exec,omitempty"`
	Disabled      bool           `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Config        map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Kind returns how the handler is provided.
func (m *Manifest) Kind() Kind {
	if m.Exec != "" {
		return KindExec
	}
	return KindBuiltin
}

// ManifestLoader reads and validates plugin manifests
type ManifestLoader struct {
	logger       zerolog.Logger
	schemaLoader gojsonschema.JSONLoader
}

// NewManifestLoader creates a new manifest loader
func NewManifestLoader(logger zerolog.Logger) *ManifestLoader {
	return &ManifestLoader{
		logger:       logger.With().Str("component", "manifest-loader").Logger(),
		schemaLoader: gojsonschema.NewStringLoader(ManifestSchema),
	}
}

// LoadManifest reads a manifest file and validates it
func (m *ManifestLoader) LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	manifest, err := m.ParseManifest(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	m.logger.Debug().
		Str("path", path).
		Str("primary", manifest.Help[0]).
		Str("kind", string(manifest.Kind())).
		Msg("Loaded manifest")

	return manifest, nil
}

// ParseManifest decodes and validates manifest bytes. ext selects the
// format: ".json" for JSON, anything else for YAML.
func (m *ManifestLoader) ParseManifest(data []byte, ext string) (*Manifest, error) {
	doc, err := toJSON(data, ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	if err := m.validateSchema(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	var manifest Manifest
	if err := json.Unmarshal(doc, &manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	if _, err := NewRegexpMatcher(manifest.Command, manifest.CaseSensitive); err != nil {
		return nil, fmt.Errorf("%w: command pattern: %v", ErrInvalidManifest, err)
	}

	return &manifest, nil
}

// validateSchema validates the manifest against the JSON schema
func (m *ManifestLoader) validateSchema(doc []byte) error {
	result, err := gojsonschema.Validate(m.schemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}

	return nil
}

// toJSON normalizes a YAML or JSON manifest into JSON bytes.
func toJSON(data []byte, ext string) ([]byte, error) {
	if strings.EqualFold(ext, ".json") {
		if !json.Valid(data) {
			return nil, errors.New("malformed JSON")
		}
		return data, nil
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed YAML: %w", err)
	}
	if doc == nil {
		return nil, errors.New("empty manifest")
	}
	return json.Marshal(doc)
}
