// SPDX-License-Identifier: MPL-2.0

package buildcfg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/renameio"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/stembuild/stembuild/internal/source"
)

// Output formats for Encode.
const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Format names a serialization of Configuration.
type Format string

// Formats lists the supported output formats.
func Formats() []Format { return []Format{FormatJSON, FormatTOML, FormatYAML} }

// ParseFormat maps a flag value to a Format. "yml" is accepted as YAML.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatTOML, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", &source.ConfigurationError{Field: "format", Value: s, Reason: "expected json, toml or yaml"}
	}
}

func (f Format) String() string { return string(f) }

// Encode writes cfg to w in the given format.
func Encode(w io.Writer, cfg *Configuration, f Format) error {
	if err := cfg.LinkMode.Validate(); err != nil {
		return err
	}

	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
	case FormatTOML:
		enc := toml.NewEncoder(w)
		enc.SetIndentTables(true)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encoding toml: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
	default:
		return &source.ConfigurationError{Field: "format", Value: string(f), Reason: "expected json, toml or yaml"}
	}
	return nil
}

// WriteFile encodes cfg and atomically replaces path with the result, so a
// reader never observes a half-written configuration.
func WriteFile(path string, cfg *Configuration, f Format) error {
	var buf bytes.Buffer
	if err := Encode(&buf, cfg, f); err != nil {
		return err
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
