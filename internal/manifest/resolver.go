// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
)

const (
	// DefaultManifestPath is the manifest location relative to the
	// distribution root.
	DefaultManifestPath = "mkinc_utf8.mak"

	// DefaultExtension is the native source extension.
	DefaultExtension = ".c"

	// IncludeDirectory holds the public headers, relative to the root.
	IncludeDirectory = "include"
)

// DefaultCoreDirs lists the libstemmer_c directories that contain library
// sources, as opposed to examples and tooling.
var DefaultCoreDirs = []string{"src_c", "runtime", "libstemmer", "include"}

type (
	// Resolver maps an extracted distribution to the sources needed to link
	// the library. Zero-valued fields take the package defaults.
	Resolver struct {
		// Root is the distribution directory.
		Root         string
		ManifestPath string
		CoreDirs     CoreDirectorySet
		Extension    string
		// Strict turns diagnostics into a ParseError.
		Strict bool
		Logger *log.Logger
	}

	// ResolvedSourceSet is the deduplicated, sorted set of absolute source
	// paths selected from the manifest.
	ResolvedSourceSet struct {
		Manifest    string
		Paths       []string
		Diagnostics []Diagnostic
	}
)

// NewResolver returns a Resolver for root with default settings.
func NewResolver(root string) *Resolver {
	return &Resolver{Root: root}
}

// Filter returns the filter Resolve applies.
func (r *Resolver) Filter() Filter {
	f := Filter{CoreDirs: r.CoreDirs, Extension: r.Extension}
	if len(f.CoreDirs) == 0 {
		f.CoreDirs = NewCoreDirectorySet(DefaultCoreDirs...)
	}
	if f.Extension == "" {
		f.Extension = DefaultExtension
	}
	return f
}

// Manifest returns the absolute manifest path.
func (r *Resolver) Manifest() (string, error) {
	root, err := filepath.Abs(r.Root)
	if err != nil {
		return "", fmt.Errorf("resolving distribution root: %w", err)
	}
	rel := r.ManifestPath
	if rel == "" {
		rel = DefaultManifestPath
	}
	return filepath.Join(root, filepath.FromSlash(rel)), nil
}

// Resolve reads the manifest and returns the core source set.
func (r *Resolver) Resolve() (*ResolvedSourceSet, error) {
	manifestPath, err := r.Manifest()
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(r.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving distribution root: %w", err)
	}

	f, err := os.Open(manifestPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{Path: manifestPath}
	}
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer func() {
		// Read-only file handle; close errors are exotic.
		_ = f.Close()
	}()

	parsed, err := Parse(f, r.Filter())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", manifestPath, err)
	}

	for _, d := range parsed.Diagnostics {
		if r.Strict {
			return nil, &ParseError{Path: manifestPath, Diagnostic: d}
		}
		if r.Logger != nil {
			r.Logger.Warn("suspicious manifest line skipped", "manifest", manifestPath, "line", d.Line, "text", d.Text, "reason", d.Reason)
		}
	}

	if r.Logger != nil {
		r.Logger.Debug("manifest parsed", "manifest", manifestPath, "entries", len(parsed.Entries), "core_dirs", r.Filter().CoreDirs.Sorted())
	}

	paths := make([]string, 0, len(parsed.Entries))
	for _, e := range parsed.Entries {
		paths = append(paths, filepath.Join(root, filepath.FromSlash(e.Path)))
	}
	slices.Sort(paths)

	return &ResolvedSourceSet{
		Manifest:    manifestPath,
		Paths:       slices.Compact(paths),
		Diagnostics: parsed.Diagnostics,
	}, nil
}

// IncludeDirectories returns the header search path for the distribution.
func (r *Resolver) IncludeDirectories() ([]string, error) {
	root, err := filepath.Abs(r.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving distribution root: %w", err)
	}
	return []string{filepath.Join(root, IncludeDirectory)}, nil
}
