// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/stembuild/stembuild/internal/buildcfg"
	"github.com/stembuild/stembuild/internal/manifest"
	"github.com/stembuild/stembuild/internal/source"
	"github.com/stembuild/stembuild/pkg/types"
)

const (
	defaultFetchTimeout  = 5 * time.Minute
	defaultFetchMaxBytes = 256 << 20
	defaultUserAgent     = "stembuild"
	defaultMirrorRegion  = "us-east-1"
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// Config is the effective stembuild configuration.
	Config struct {
		// Version is a libstemmer_c version or a binding version whose first
		// three components name the library release (3.0.0.1 builds 3.0.0).
		Version   string `json:"version" mapstructure:"version"`
		BuildRoot string `json:"build_root" mapstructure:"build_root"`
		// SourceURI may contain a single %s that is replaced by Version.
		SourceURI string `json:"source_uri" mapstructure:"source_uri"`
		Checksum  string `json:"checksum,omitempty" mapstructure:"checksum"`
		// SystemLibrary is the raw toggle; see UseSystemLibrary.
		SystemLibrary     string         `json:"system_library,omitempty" mapstructure:"system_library"`
		SystemLibraryName string         `json:"system_library_name" mapstructure:"system_library_name"`
		Manifest          ManifestConfig `json:"manifest" mapstructure:"manifest"`
		Binding           BindingConfig  `json:"binding" mapstructure:"binding"`
		Fetch             FetchConfig    `json:"fetch" mapstructure:"fetch"`
		Extract           ExtractConfig  `json:"extract" mapstructure:"extract"`
		Mirror            MirrorConfig   `json:"mirror" mapstructure:"mirror"`

		// SourcePath is the config file that was loaded, empty for defaults.
		SourcePath string `json:"-" mapstructure:"-"`
	}

	// ManifestConfig controls how mkinc_utf8.mak is filtered.
	ManifestConfig struct {
		Path      string   `json:"path" mapstructure:"path"`
		CoreDirs  []string `json:"core_dirs" mapstructure:"core_dirs"`
		Extension string   `json:"extension" mapstructure:"extension"`
		Strict    bool     `json:"strict" mapstructure:"strict"`
	}

	// BindingConfig names the extension and its own sources.
	BindingConfig struct {
		ExtensionName string   `json:"extension_name" mapstructure:"extension_name"`
		Sources       []string `json:"sources" mapstructure:"sources"`
	}

	// FetchConfig tunes archive downloads.
	FetchConfig struct {
		Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
		MaxBytes  int64         `json:"max_bytes" mapstructure:"max_bytes"`
		UserAgent string        `json:"user_agent" mapstructure:"user_agent"`
	}

	// ExtractConfig controls how the downloaded archive is unpacked.
	ExtractConfig struct {
		// StripComponents drops leading path elements, like tar --strip-components.
		StripComponents int   `json:"strip_components" mapstructure:"strip_components"`
		MaxBytes        int64 `json:"max_bytes" mapstructure:"max_bytes"`
	}

	// MirrorConfig points s3:// source URIs at an S3-compatible endpoint.
	MirrorConfig struct {
		Endpoint  string `json:"endpoint,omitempty" mapstructure:"endpoint"`
		AccessKey string `json:"access_key,omitempty" mapstructure:"access_key"`
		SecretKey string `json:"-" mapstructure:"secret_key"`
		Region    string `json:"region" mapstructure:"region"`
		UseSSL    bool   `json:"use_ssl" mapstructure:"use_ssl"`
	}

	// InvalidConfigError collects every field-level problem found by Validate.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Version:           source.DefaultVersion,
		BuildRoot:         ".",
		SourceURI:         source.DefaultURITemplate,
		SystemLibraryName: buildcfg.DefaultSystemLibrary,
		Manifest: ManifestConfig{
			Path:      manifest.DefaultManifestPath,
			CoreDirs:  append([]string(nil), manifest.DefaultCoreDirs...),
			Extension: manifest.DefaultExtension,
		},
		Binding: BindingConfig{
			ExtensionName: buildcfg.DefaultExtensionName,
			Sources:       append([]string(nil), buildcfg.DefaultBindingSources...),
		},
		Fetch: FetchConfig{
			Timeout:   defaultFetchTimeout,
			MaxBytes:  defaultFetchMaxBytes,
			UserAgent: defaultUserAgent,
		},
		Extract: ExtractConfig{
			StripComponents: source.DefaultStripComponents,
			MaxBytes:        source.DefaultMaxExtractBytes,
		},
		Mirror: MirrorConfig{
			Region: defaultMirrorRegion,
			UseSSL: true,
		},
	}
}

// UseSystemLibrary parses the system-library toggle.
func (c *Config) UseSystemLibrary() (bool, error) {
	return buildcfg.ParseToggle(EnvSystemLibrary, c.SystemLibrary)
}

// LibraryVersion is the libstemmer_c release selected by Version.
func (c *Config) LibraryVersion() (string, error) {
	return source.LibraryVersion(c.Version)
}

// Distribution resolves the configured libstemmer_c distribution.
func (c *Config) Distribution() (*source.Distribution, error) {
	version, err := c.LibraryVersion()
	if err != nil {
		return nil, err
	}
	return source.NewDistribution(version, c.BuildRoot, c.SourceURI, c.Checksum)
}

// ManifestSettings converts the manifest section for the composer.
func (c *Config) ManifestSettings() buildcfg.ManifestSettings {
	return buildcfg.ManifestSettings{
		Path:      c.Manifest.Path,
		CoreDirs:  c.Manifest.CoreDirs,
		Extension: c.Manifest.Extension,
		Strict:    c.Manifest.Strict,
	}
}

// BindingSettings converts the binding section for the composer.
func (c *Config) BindingSettings() buildcfg.Binding {
	return buildcfg.Binding{ExtensionName: c.Binding.ExtensionName, Sources: c.Binding.Sources}
}

// S3Config returns the mirror settings for the S3 fetcher.
func (c *Config) S3Config() source.S3Config {
	return source.S3Config{
		Endpoint:  c.Mirror.Endpoint,
		Region:    c.Mirror.Region,
		AccessKey: c.Mirror.AccessKey,
		SecretKey: c.Mirror.SecretKey,
		UseSSL:    c.Mirror.UseSSL,
		MaxBytes:  c.Fetch.MaxBytes,
	}
}

// Validate checks constraints that span fields or that the CUE schema does
// not see, such as values arriving from the environment.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.LibraryVersion(); err != nil {
		errs = append(errs, err)
	}
	if err := types.FilesystemPath(c.BuildRoot).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("build_root: %w", err))
	}
	if c.Checksum != "" {
		if err := source.ValidateChecksum(c.Checksum); err != nil {
			errs = append(errs, err)
		}
	}
	if err := validateSourceURI(c.SourceURI); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.UseSystemLibrary(); err != nil {
		errs = append(errs, err)
	}
	if !strings.HasPrefix(c.Manifest.Extension, ".") {
		errs = append(errs, &source.ConfigurationError{Field: "manifest.extension", Value: c.Manifest.Extension, Reason: "must start with a dot"})
	}
	if strings.TrimSpace(c.Binding.ExtensionName) == "" {
		errs = append(errs, &source.ConfigurationError{Field: "binding.extension_name", Reason: "must not be empty"})
	}
	if c.Fetch.Timeout < 0 {
		errs = append(errs, &source.ConfigurationError{Field: "fetch.timeout", Value: c.Fetch.Timeout.String(), Reason: "must not be negative"})
	}
	if c.Fetch.MaxBytes <= 0 {
		errs = append(errs, &source.ConfigurationError{Field: "fetch.max_bytes", Value: fmt.Sprint(c.Fetch.MaxBytes), Reason: "must be positive"})
	}
	if c.Extract.StripComponents < 0 {
		errs = append(errs, &source.ConfigurationError{Field: "extract.strip_components", Value: fmt.Sprint(c.Extract.StripComponents), Reason: "must not be negative"})
	}
	if c.Extract.MaxBytes <= 0 {
		errs = append(errs, &source.ConfigurationError{Field: "extract.max_bytes", Value: fmt.Sprint(c.Extract.MaxBytes), Reason: "must be positive"})
	}
	if (c.Mirror.AccessKey == "") != (c.Mirror.SecretKey == "") {
		errs = append(errs, &source.ConfigurationError{Field: "mirror", Reason: "access_key and secret_key must be set together"})
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

func validateSourceURI(raw string) error {
	u, err := url.Parse(strings.ReplaceAll(raw, "%s", "0.0.0"))
	if err != nil {
		return &source.ConfigurationError{Field: "source_uri", Value: raw, Reason: err.Error()}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "s3":
		return nil
	default:
		return &source.ConfigurationError{Field: "source_uri", Value: raw, Reason: "scheme must be http, https or s3"}
	}
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap exposes ErrInvalidConfig and every field error.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
