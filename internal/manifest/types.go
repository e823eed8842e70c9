// Package manifest models the remote bundle registry and keeps a local
// verbatim copy of it fresh via conditional fetches.
package manifest

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/starford/primer/internal/apperr"
)

//go:embed data/manifest.schema.json
var schemaFS embed.FS

// FileName is the cached registry document at the mirror root.
const FileName = "registry.json"

// Bundle describes one named content package. File order is preserved
// for display; fetch order is unspecified.
type Bundle struct {
	Description string   `json:"description"`
	Files       []string `json:"files"`
}

// Manifest is the registry of all available bundles.
type Manifest struct {
	Version int               `json:"version"`
	Bundles map[string]Bundle `json:"bundles"`
}

// Names returns all bundle names, sorted.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Bundles))
	for name := range m.Bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse unmarshals and schema-validates a registry document. Any failure
// is a ManifestError; a body that fails validation is never treated as
// an empty registry.
func Parse(data []byte) (*Manifest, error) {
	if err := validateSchema(data); err != nil {
		return nil, &apperr.ManifestError{Err: err}
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &apperr.ManifestError{Err: err}
	}
	if m.Bundles == nil {
		m.Bundles = map[string]Bundle{}
	}
	return &m, nil
}

// validateSchema checks data against the embedded registry schema.
func validateSchema(data []byte) error {
	schema, err := schemaFS.ReadFile("data/manifest.schema.json")
	if err != nil {
		return fmt.Errorf("read embedded schema: %w", err)
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("schema validation: %s", strings.Join(msgs, "; "))
}
