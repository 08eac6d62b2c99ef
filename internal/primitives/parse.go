package primitives

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes and validates a YAML description. Unknown fields are
// rejected.
func ParseYAML(data []byte) (*Description, error) {
	var d Description
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode yaml description: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseJSON decodes and validates a JSON description. Unknown fields are
// rejected.
func ParseJSON(data []byte) (*Description, error) {
	var d Description
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode json description: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadFile reads a description, choosing the format by file extension.
func LoadFile(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read description: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	}
	return nil, fmt.Errorf("unsupported description format %q", filepath.Ext(path))
}

// YAML renders the description as YAML.
func (d *Description) YAML() ([]byte, error) {
	return yaml.Marshal(d)
}
