// SPDX-License-Identifier: MPL-2.0

package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
)

const (
	// DefaultVersion is the libstemmer_c release pinned by this build.
	DefaultVersion = "3.0.0"

	// DefaultURITemplate is the upstream archive location; %s is the version.
	DefaultURITemplate = "https://snowballstem.org/dist/libstemmer_c-%s.tar.gz"

	// DefaultChecksum is the SHA256 of the DefaultVersion archive.
	DefaultChecksum = "d4eca4485f6d3cb4387626a5f508b9b3489d24737525c23ba58026159497a8bc"

	// DirectoryPrefix names version directories: libstemmer_c-<version>.
	DirectoryPrefix = "libstemmer_c-"
)

// Distribution identifies one acquirable libstemmer_c source tree.
// Directory is a pure function of BuildRoot and Version.
type Distribution struct {
	Version   string
	BuildRoot string
	Directory string
	SourceURI string
	Checksum  string
}

// NewDistribution validates version and resolves the on-disk layout under
// buildRoot. sourceURI may be empty (DefaultURITemplate is used) or contain
// a single %s which is replaced by the version. checksum may be empty only
// for DefaultVersion, whose digest is pinned.
func NewDistribution(version, buildRoot, sourceURI, checksum string) (*Distribution, error) {
	if err := ValidateVersion(version); err != nil {
		return nil, err
	}

	if strings.TrimSpace(buildRoot) == "" {
		buildRoot = "."
	}
	root, err := filepath.Abs(buildRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving build root: %w", err)
	}

	if sourceURI == "" {
		sourceURI = DefaultURITemplate
	}
	if strings.Contains(sourceURI, "%s") {
		sourceURI = fmt.Sprintf(sourceURI, version)
	}

	if checksum == "" {
		if version != DefaultVersion {
			return nil, &ConfigurationError{
				Field:  "checksum",
				Reason: fmt.Sprintf("no pinned digest for libstemmer_c %s; set one explicitly", version),
			}
		}
		checksum = DefaultChecksum
	}
	if err := ValidateChecksum(checksum); err != nil {
		return nil, err
	}

	return &Distribution{
		Version:   version,
		BuildRoot: root,
		Directory: filepath.Join(root, DirectoryPrefix+version),
		SourceURI: sourceURI,
		Checksum:  strings.ToLower(checksum),
	}, nil
}

// ValidateVersion requires a plain three-component version such as "3.0.0".
func ValidateVersion(version string) error {
	v := "v" + version
	if strings.Count(version, ".") != 2 || !semver.IsValid(v) || semver.Prerelease(v) != "" || semver.Build(v) != "" {
		return &ConfigurationError{Field: "version", Value: version, Reason: "must have exactly three numeric components, e.g. 3.0.0"}
	}
	return nil
}

// LibraryVersion derives the libstemmer_c version from a binding version.
// Bindings may carry extra numeric components for binding-only fixes
// (3.0.0.1); the library version is the first three.
func LibraryVersion(bindingVersion string) (string, error) {
	parts := strings.Split(strings.TrimPrefix(bindingVersion, "v"), ".")
	if len(parts) < 3 {
		return "", &ConfigurationError{Field: "version", Value: bindingVersion, Reason: "needs at least three components"}
	}
	for _, p := range parts[3:] {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			return "", &ConfigurationError{Field: "version", Value: bindingVersion, Reason: "components after the third must be numeric"}
		}
	}
	v := strings.Join(parts[:3], ".")
	if err := ValidateVersion(v); err != nil {
		return "", err
	}
	return v, nil
}

// WithOverrides returns a copy of d with the source URI and checksum
// replaced by any non-empty override. The checksum override is validated.
func (d *Distribution) WithOverrides(uri, checksum string) (*Distribution, error) {
	out := *d
	if uri != "" {
		out.SourceURI = uri
	}
	if checksum != "" {
		if err := ValidateChecksum(checksum); err != nil {
			return nil, err
		}
		out.Checksum = strings.ToLower(checksum)
	}
	return &out, nil
}

// IsPresent reports whether the distribution directory exists. This is the
// only persisted state: staging directories never carry the final name.
// Filesystem failures are reported as *ExtractionError, since the tree
// could not be placed there either.
func (d *Distribution) IsPresent() (bool, error) {
	info, err := os.Stat(d.Directory)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, d.filesystemError(fmt.Errorf("checking %s: %w", d.Directory, err))
	}
	if !info.IsDir() {
		return false, d.filesystemError(fmt.Errorf("%s exists but is not a directory", d.Directory))
	}
	return true, nil
}

func (d *Distribution) filesystemError(err error) error {
	return &ExtractionError{Archive: redactURL(d.SourceURI), Err: err}
}

// stagingPattern is the os.MkdirTemp pattern for in-progress extractions.
// The leading dot and suffix keep it from ever matching Directory.
func (d *Distribution) stagingPattern() string {
	return "." + DirectoryPrefix + d.Version + ".staging-*"
}
