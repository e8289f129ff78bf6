// SPDX-License-Identifier: MPL-2.0

package source

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Format identifies the compression wrapped around a tar stream.
type Format string

const (
	FormatTar    Format = "tar"
	FormatTarGz  Format = "tar.gz"
	FormatTarXz  Format = "tar.xz"
	FormatTarZst Format = "tar.zst"
	FormatTarLz4 Format = "tar.lz4"
)

// suffixes is ordered so that ".tar.gz" is tried before ".tar".
var suffixes = []struct {
	suffix string
	format Format
}{
	{".tar.gz", FormatTarGz},
	{".tgz", FormatTarGz},
	{".tar.xz", FormatTarXz},
	{".txz", FormatTarXz},
	{".tar.zst", FormatTarZst},
	{".tzst", FormatTarZst},
	{".tar.lz4", FormatTarLz4},
	{".tar", FormatTar},
}

// DetectFormat infers the archive format from a file name or URI. Query
// strings and fragments are ignored.
func DetectFormat(name string) (Format, error) {
	p := name
	if u, err := url.Parse(name); err == nil && u.Scheme != "" {
		p = u.Path
	}
	base := strings.ToLower(path.Base(p))
	for _, s := range suffixes {
		if strings.HasSuffix(base, s.suffix) {
			return s.format, nil
		}
	}
	return "", &ConfigurationError{
		Field:  "archive format",
		Value:  base,
		Reason: "expected one of .tar, .tar.gz, .tar.xz, .tar.zst, .tar.lz4",
	}
}

// decompress wraps r in the reader for format. The returned closer releases
// decoder resources and must be called once the tar stream is consumed.
func decompress(format Format, r io.Reader) (io.Reader, func(), error) {
	switch format {
	case FormatTar:
		return r, func() {}, nil
	case FormatTarGz:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	case FormatTarXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating xz reader: %w", err)
		}
		return xr, func() {}, nil
	case FormatTarZst:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		return zr, zr.Close, nil
	case FormatTarLz4:
		return lz4.NewReader(r), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported archive format %q", format)
	}
}
