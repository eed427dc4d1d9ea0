package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a manifest from the given file path.
//
// The file format is determined by extension: .yaml/.yml for YAML, .json
// for JSON. If the extension is unrecognized, YAML is attempted first,
// then JSON.
//
// After loading, the manifest is validated against the embedded JSON
// schema and defaults are applied to optional fields.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest file not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading manifest: %s", path)
		}
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates a manifest from raw bytes.
//
// The path parameter is used for error messages and format detection.
// If path is empty, format detection falls back to trying YAML first.
//
// Schema validation runs on the raw document (converted to JSON) before it
// is parsed into the typed struct, so unknown fields are rejected instead
// of silently dropped.
func LoadFromBytes(data []byte, path string) (*Manifest, error) {
	if len(data) == 0 {
		return nil, errors.New("manifest file is empty")
	}

	jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, err
	}
	if err := ValidateRaw(jsonData); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	var m Manifest
	if err := unmarshal(data, path, &m); err != nil {
		return nil, err
	}
	m.applyDefaults()

	return &m, nil
}

func unmarshal(data []byte, path string, m *Manifest) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, m); err != nil {
			return fmt.Errorf("invalid YAML: %w", err)
		}
		return nil
	case ".json":
		if err := json.Unmarshal(data, m); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		return nil
	default:
		if yamlErr := yaml.Unmarshal(data, m); yamlErr == nil {
			return nil
		}
		if jsonErr := json.Unmarshal(data, m); jsonErr == nil {
			return nil
		}
		return fmt.Errorf("manifest is neither valid YAML nor valid JSON")
	}
}

// toJSON converts the raw document to JSON for schema validation,
// preserving unknown fields for the additionalProperties check.
func toJSON(data []byte, path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return data, nil
	case ".yaml", ".yml":
		return yamlToJSON(data)
	default:
		if jsonData, err := yamlToJSON(data); err == nil {
			return jsonData, nil
		}
		var raw any
		if err := json.Unmarshal(data, &raw); err == nil {
			return data, nil
		}
		return nil, fmt.Errorf("manifest is neither valid YAML nor valid JSON")
	}
}

// yamlToJSON converts YAML data to JSON.
func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert manifest to JSON: %w", err)
	}
	return jsonData, nil
}
