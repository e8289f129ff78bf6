// SPDX-License-Identifier: MPL-2.0

package source

import (
	"archive/tar"
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// tarEntry describes one entry of a test archive. Typeflag defaults to a
// regular file.
type tarEntry struct {
	Name     string
	Body     string
	Typeflag byte
	Linkname string
}

// buildArchive produces an archive in the given format from entries.
func buildArchive(t *testing.T, format Format, entries []tarEntry) []byte {
	t.Helper()

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.Name,
			Mode:     0o644,
			Typeflag: e.Typeflag,
			Linkname: e.Linkname,
		}
		switch e.Typeflag {
		case 0:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
		case tar.TypeDir:
			hdr.Mode = 0o755
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing tar header %s: %v", e.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("writing tar body %s: %v", e.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar writer: %v", err)
	}

	var out bytes.Buffer
	var w io.WriteCloser
	switch format {
	case FormatTar:
		return tarBuf.Bytes()
	case FormatTarGz:
		w = gzip.NewWriter(&out)
	case FormatTarXz:
		xw, err := xz.NewWriter(&out)
		if err != nil {
			t.Fatalf("creating xz writer: %v", err)
		}
		w = xw
	case FormatTarZst:
		zw, err := zstd.NewWriter(&out)
		if err != nil {
			t.Fatalf("creating zstd writer: %v", err)
		}
		w = zw
	case FormatTarLz4:
		w = lz4.NewWriter(&out)
	default:
		t.Fatalf("unknown format %q", format)
	}
	if _, err := w.Write(tarBuf.Bytes()); err != nil {
		t.Fatalf("compressing: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing compressor: %v", err)
	}
	return out.Bytes()
}

// libstemmerEntries mimics the upstream tarball layout.
func libstemmerEntries(version string) []tarEntry {
	top := "libstemmer_c-" + version + "/"
	return []tarEntry{
		{Name: top, Typeflag: tar.TypeDir},
		{Name: top + "mkinc_utf8.mak", Body: "snowball_sources= \\\n  src_c/stem_UTF_8_danish.c \\\n  runtime/api.c\n"},
		{Name: top + "include/", Typeflag: tar.TypeDir},
		{Name: top + "include/libstemmer.h", Body: "struct sb_stemmer;\n"},
		{Name: top + "src_c/", Typeflag: tar.TypeDir},
		{Name: top + "src_c/stem_UTF_8_danish.c", Body: "int danish;\n"},
		{Name: top + "runtime/", Typeflag: tar.TypeDir},
		{Name: top + "runtime/api.c", Body: "int api;\n"},
	}
}

// writeArchive stores data under dir and returns its path.
func writeArchive(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("writing archive: %v", err)
	}
	return p
}

// newArchiveServer serves data at any path and counts requests.
func newArchiveServer(t *testing.T, data []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/gzip")
		if _, err := w.Write(data); err != nil {
			t.Errorf("writing archive response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	return srv, &hits
}

// listDir returns the names in dir, failing the test on error.
func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
