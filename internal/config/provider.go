// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stembuild/stembuild/pkg/types"
)

// ErrInvalidLoadOptions is the sentinel error wrapped by InvalidLoadOptionsError.
var ErrInvalidLoadOptions = errors.New("invalid load options")

type (
	// LoadOptions defines explicit configuration loading inputs. Zero values
	// select the defaults.
	LoadOptions struct {
		// ConfigFilePath forces loading from a specific config file when set.
		ConfigFilePath types.FilesystemPath
		// ConfigDirPath overrides the user config directory lookup when set.
		ConfigDirPath types.FilesystemPath
		// BaseDir is searched for stembuild.cue and .env; defaults to the
		// working directory.
		BaseDir types.FilesystemPath
		// EnvFile names a dotenv file that must exist. When empty, BaseDir/.env
		// is loaded if present.
		EnvFile types.FilesystemPath
		// Overrides are applied last, keyed by config key (e.g. "build_root").
		Overrides map[string]any
	}

	// InvalidLoadOptionsError is returned when LoadOptions has whitespace-only paths.
	InvalidLoadOptionsError struct {
		FieldErrors []error
	}

	// Provider loads configuration from explicit options.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Config, error)
	}

	fileProvider struct{}
)

// NewProvider creates a configuration provider.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads configuration from the requested sources.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	return loadWithOptions(ctx, opts)
}

// Validate rejects paths that are set but whitespace-only.
func (o LoadOptions) Validate() error {
	var errs []error
	for name, p := range map[string]types.FilesystemPath{
		"config file": o.ConfigFilePath,
		"config dir":  o.ConfigDirPath,
		"base dir":    o.BaseDir,
		"env file":    o.EnvFile,
	} {
		if p == "" {
			continue
		}
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return &InvalidLoadOptionsError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidLoadOptionsError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid load options: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidLoadOptions for errors.Is() compatibility.
func (e *InvalidLoadOptionsError) Unwrap() error { return ErrInvalidLoadOptions }
