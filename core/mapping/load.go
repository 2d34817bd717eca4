package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/komkom/toml"
	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/standoff/core/errors"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatTOML Format = "TOML"
	FormatYAML Format = "YAML"
	FormatJSON Format = "JSON"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", errors.NewValidation("config", fmt.Sprintf("cannot tell format of %s (want .toml, .yaml, .yml or .json)", path))
}

// LoadFile loads, parses and prepares a mapping file.
func LoadFile(path string) (*Config, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	cfg, err := Parse(data, format)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse parses configuration data and prepares it.
func Parse(data []byte, format Format) (*Config, error) {
	raw, err := toJSON(data, format)
	if err != nil {
		return nil, &errors.ParseError{Format: string(format), Message: err.Error(), Err: err}
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, &errors.ConfigError{Message: "invalid configuration", Err: err}
	}
	if err := cfg.Prepare(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// toJSON normalizes every supported syntax to JSON so one set of struct
// tags serves all of them.
func toJSON(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatTOML:
		return io.ReadAll(toml.New(bytes.NewReader(data)))
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if doc == nil {
			doc = map[string]any{}
		}
		return json.Marshal(normalizeYAML(doc))
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// normalizeYAML converts map[any]any nodes, which encoding/json rejects,
// into map[string]any.
func normalizeYAML(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeYAML(e)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = normalizeYAML(e)
		}
		return out
	case []any:
		for i, e := range x {
			x[i] = normalizeYAML(e)
		}
		return x
	}
	return v
}

// Marshal serializes the configuration as JSON.
func Marshal(c *Config) ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
