// SPDX-License-Identifier: MPL-2.0

// Package buildcfg composes the native build configuration for the stemmer
// extension, either from vendored libstemmer_c sources or against a system
// libstemmer.
package buildcfg

import (
	"context"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/stembuild/stembuild/internal/manifest"
	"github.com/stembuild/stembuild/internal/source"
)

const (
	// DefaultExtensionName is the name of the compiled extension module.
	DefaultExtensionName = "Stemmer"

	// DefaultSystemLibrary is the library name handed to the linker in
	// system-library mode.
	DefaultSystemLibrary = "stemmer"
)

// DefaultBindingSources are the binding's own sources, compiled in both modes.
var DefaultBindingSources = []string{"src/Stemmer.pyx"}

type (
	// Acquirer makes a distribution present on disk.
	Acquirer interface {
		Acquire(ctx context.Context, dist *source.Distribution, opts source.AcquireOptions) (*source.AcquireResult, error)
	}

	// Binding describes the extension that links libstemmer.
	Binding struct {
		ExtensionName string
		Sources       []string
	}

	// ManifestSettings configures the Resolver used in vendored mode.
	// Zero-valued fields take the manifest package defaults.
	ManifestSettings struct {
		Path      string
		CoreDirs  []string
		Extension string
		Strict    bool
	}

	// Request selects the link mode and, for vendored builds, the
	// distribution and optional overrides.
	Request struct {
		UseSystemLibrary bool
		Distribution     *source.Distribution
		URI              string
		Checksum         string
	}

	// Configuration is the build description handed to the native compiler.
	Configuration struct {
		ExtensionName      string   `json:"extension_name" toml:"extension_name" yaml:"extension_name"`
		LinkMode           LinkMode `json:"link_mode" toml:"link_mode" yaml:"link_mode"`
		LibraryVersion     string   `json:"libstemmer_version,omitempty" toml:"libstemmer_version,omitempty" yaml:"libstemmer_version,omitempty"`
		SourceFiles        []string `json:"source_files" toml:"source_files" yaml:"source_files"`
		IncludeDirectories []string `json:"include_directories,omitempty" toml:"include_directories,omitempty" yaml:"include_directories,omitempty"`
		Libraries          []string `json:"libraries,omitempty" toml:"libraries,omitempty" yaml:"libraries,omitempty"`
		Diagnostics        []string `json:"diagnostics,omitempty" toml:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	}

	// Composer builds a Configuration for either link mode.
	Composer struct {
		acquirer      Acquirer
		binding       Binding
		systemLibrary string
		manifest      ManifestSettings
		logger        *log.Logger
	}

	// ComposerOption configures a Composer during construction.
	ComposerOption func(*Composer)
)

// WithBinding overrides the extension name and binding sources.
func WithBinding(b Binding) ComposerOption {
	return func(c *Composer) {
		if b.ExtensionName != "" {
			c.binding.ExtensionName = b.ExtensionName
		}
		if len(b.Sources) > 0 {
			c.binding.Sources = slices.Clone(b.Sources)
		}
	}
}

// WithSystemLibrary sets the library name used in system-library mode.
func WithSystemLibrary(name string) ComposerOption {
	return func(c *Composer) {
		if name != "" {
			c.systemLibrary = name
		}
	}
}

// WithManifest configures manifest resolution for vendored builds.
func WithManifest(m ManifestSettings) ComposerOption {
	return func(c *Composer) {
		c.manifest = m
	}
}

// WithLogger sets the logger used for progress and manifest warnings.
func WithLogger(l *log.Logger) ComposerOption {
	return func(c *Composer) {
		c.logger = l
	}
}

// NewComposer creates a Composer that acquires vendored sources through a.
func NewComposer(a Acquirer, opts ...ComposerOption) *Composer {
	c := &Composer{
		acquirer: a,
		binding: Binding{
			ExtensionName: DefaultExtensionName,
			Sources:       slices.Clone(DefaultBindingSources),
		},
		systemLibrary: DefaultSystemLibrary,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c
}

// Compose returns the build configuration for req. In system-library mode
// nothing is fetched or read from disk. In vendored mode the distribution is
// acquired when absent and its manifest is always resolved.
func (c *Composer) Compose(ctx context.Context, req Request) (*Configuration, error) {
	if req.UseSystemLibrary {
		return c.composeSystem(req)
	}
	return c.composeVendored(ctx, req)
}

func (c *Composer) composeSystem(req Request) (*Configuration, error) {
	if req.URI != "" || req.Checksum != "" {
		return nil, &source.ConfigurationError{
			Field:  "libstemmer overrides",
			Reason: "archive URL and checksum cannot be combined with system-library mode",
		}
	}

	c.logger.Debug("linking against system libstemmer", "library", c.systemLibrary)
	return &Configuration{
		ExtensionName: c.binding.ExtensionName,
		LinkMode:      LinkSystemLibrary,
		SourceFiles:   slices.Clone(c.binding.Sources),
		Libraries:     []string{c.systemLibrary},
	}, nil
}

func (c *Composer) composeVendored(ctx context.Context, req Request) (*Configuration, error) {
	if req.Distribution == nil {
		return nil, &source.ConfigurationError{Field: "distribution", Reason: "required for vendored builds"}
	}

	res, err := c.acquirer.Acquire(ctx, req.Distribution, source.AcquireOptions{URI: req.URI, Checksum: req.Checksum})
	if err != nil {
		return nil, err
	}

	resolver := c.resolver(res.Directory)
	set, err := resolver.Resolve()
	if err != nil {
		return nil, err
	}
	includes, err := resolver.IncludeDirectories()
	if err != nil {
		return nil, err
	}

	cfg := &Configuration{
		ExtensionName:      c.binding.ExtensionName,
		LinkMode:           LinkVendored,
		LibraryVersion:     req.Distribution.Version,
		SourceFiles:        slices.Concat(c.binding.Sources, set.Paths),
		IncludeDirectories: includes,
	}
	for _, d := range set.Diagnostics {
		cfg.Diagnostics = append(cfg.Diagnostics, d.String())
	}

	c.logger.Debug("resolved vendored sources", "count", len(set.Paths), "manifest", set.Manifest)
	return cfg, nil
}

func (c *Composer) resolver(root string) *manifest.Resolver {
	return c.manifest.Resolver(root, c.logger)
}

// Resolver returns a manifest Resolver for the distribution at root.
func (m ManifestSettings) Resolver(root string, logger *log.Logger) *manifest.Resolver {
	r := manifest.NewResolver(root)
	r.ManifestPath = m.Path
	r.Extension = m.Extension
	r.Strict = m.Strict
	r.Logger = logger
	if len(m.CoreDirs) > 0 {
		r.CoreDirs = manifest.NewCoreDirectorySet(m.CoreDirs...)
	}
	return r
}
