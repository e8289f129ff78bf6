// SPDX-License-Identifier: MPL-2.0

package source

import (
	"archive/tar"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExtract_Formats(t *testing.T) {
	t.Parallel()

	formats := []struct {
		format Format
		name   string
	}{
		{FormatTar, "a.tar"},
		{FormatTarGz, "a.tar.gz"},
		{FormatTarXz, "a.tar.xz"},
		{FormatTarZst, "a.tar.zst"},
		{FormatTarLz4, "a.tar.lz4"},
	}

	for _, tt := range formats {
		t.Run(string(tt.format), func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			archive := writeArchive(t, dir, tt.name, buildArchive(t, tt.format, libstemmerEntries("3.0.0")))
			target := filepath.Join(dir, "out")

			detected, err := DetectFormat(tt.name)
			if err != nil || detected != tt.format {
				t.Fatalf("DetectFormat(%q) = %q, %v; want %q", tt.name, detected, err, tt.format)
			}

			if err := Extract(archive, target, ExtractOptions{Format: tt.format, StripComponents: 1}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			data, err := os.ReadFile(filepath.Join(target, "src_c", "stem_UTF_8_danish.c"))
			if err != nil {
				t.Fatalf("reading extracted file: %v", err)
			}
			if string(data) != "int danish;\n" {
				t.Errorf("content = %q", data)
			}
			if _, err := os.Stat(filepath.Join(target, "mkinc_utf8.mak")); err != nil {
				t.Errorf("manifest not extracted at the stripped root: %v", err)
			}
		})
	}
}

func TestExtract_NoStrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archive := writeArchive(t, dir, "a.tar.gz", buildArchive(t, FormatTarGz, libstemmerEntries("3.0.0")))
	target := filepath.Join(dir, "out")

	if err := Extract(archive, target, ExtractOptions{Format: FormatTarGz}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "libstemmer_c-3.0.0", "runtime", "api.c")); err != nil {
		t.Errorf("expected wrapper directory to be kept: %v", err)
	}
}

func TestExtract_RefusesUnsafeEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []tarEntry
	}{
		{
			name:    "parent traversal",
			entries: []tarEntry{{Name: "top/../../evil.c", Body: "x"}},
		},
		{
			name:    "absolute path",
			entries: []tarEntry{{Name: "/tmp/evil.c", Body: "x"}},
		},
		{
			name:    "symlink escaping root",
			entries: []tarEntry{{Name: "top/link", Typeflag: tar.TypeSymlink, Linkname: "../../outside"}},
		},
		{
			name:    "absolute symlink",
			entries: []tarEntry{{Name: "top/link", Typeflag: tar.TypeSymlink, Linkname: "/etc"}},
		},
		{
			name: "write through symlink",
			entries: []tarEntry{
				{Name: "top/d", Typeflag: tar.TypeSymlink, Linkname: "."},
				{Name: "top/d/x.c", Body: "x"},
			},
		},
		{
			name: "symlink chained through another symlink",
			entries: []tarEntry{
				{Name: "top/d", Typeflag: tar.TypeDir},
				{Name: "top/d/l1", Typeflag: tar.TypeSymlink, Linkname: ".."},
				{Name: "top/l2", Typeflag: tar.TypeSymlink, Linkname: "d/l1/.."},
			},
		},
		{
			name: "symlink climbing after a not yet created link",
			entries: []tarEntry{
				{Name: "top/d", Typeflag: tar.TypeDir},
				{Name: "top/l2", Typeflag: tar.TypeSymlink, Linkname: "d/x/.."},
				{Name: "top/d/x", Typeflag: tar.TypeSymlink, Linkname: ".."},
			},
		},
		{
			name:    "symlink climbing above root from nested dir",
			entries: []tarEntry{{Name: "top/d/link", Typeflag: tar.TypeSymlink, Linkname: "../../outside"}},
		},
		{
			name: "hardlink to a nested symlink",
			entries: []tarEntry{
				{Name: "top/d/e", Typeflag: tar.TypeDir},
				{Name: "top/d/e/up", Typeflag: tar.TypeSymlink, Linkname: "../.."},
				{Name: "top/h", Typeflag: tar.TypeLink, Linkname: "top/d/e/up"},
			},
		},
		{
			name:    "hardlink escaping root",
			entries: []tarEntry{{Name: "top/h", Typeflag: tar.TypeLink, Linkname: "../etc/passwd"}},
		},
		{
			name:    "character device",
			entries: []tarEntry{{Name: "top/tty", Typeflag: tar.TypeChar}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			archive := writeArchive(t, dir, "a.tar", buildArchive(t, FormatTar, tt.entries))
			target := filepath.Join(dir, "out")

			err := Extract(archive, target, ExtractOptions{Format: FormatTar, StripComponents: 1})
			if !errors.Is(err, ErrExtraction) {
				t.Fatalf("got %v, want ErrExtraction", err)
			}
			if _, statErr := os.Stat(filepath.Join(dir, "evil.c")); statErr == nil {
				t.Error("file written outside the target directory")
			}
		})
	}
}

func TestExtract_Hardlink(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archive := writeArchive(t, dir, "a.tar", buildArchive(t, FormatTar, []tarEntry{
		{Name: "top/a.c", Body: "int a;\n"},
		{Name: "top/b.c", Typeflag: tar.TypeLink, Linkname: "top/a.c"},
	}))
	target := filepath.Join(dir, "out")

	if err := Extract(archive, target, ExtractOptions{Format: FormatTar, StripComponents: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(target, "b.c"))
	if err != nil || string(data) != "int a;\n" {
		t.Errorf("hardlink content = %q, %v", data, err)
	}
}

func TestExtract_SizeLimit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archive := writeArchive(t, dir, "a.tar", buildArchive(t, FormatTar, []tarEntry{
		{Name: "top/big.c", Body: "0123456789"},
	}))

	err := Extract(archive, filepath.Join(dir, "out"), ExtractOptions{Format: FormatTar, StripComponents: 1, MaxBytes: 4})
	if !errors.Is(err, ErrExtraction) || !errors.Is(err, errSizeExceeded) {
		t.Fatalf("got %v, want size limit ExtractionError", err)
	}
}

func TestExtract_MalformedArchive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archive := writeArchive(t, dir, "a.tar.gz", []byte("definitely not gzip"))

	err := Extract(archive, filepath.Join(dir, "out"), ExtractOptions{Format: FormatTarGz})
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("got %v, want ErrExtraction", err)
	}
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  Format
	}{
		{"https://snowballstem.org/dist/libstemmer_c-3.0.0.tar.gz", FormatTarGz},
		{"https://mirror.example/libstemmer_c-3.0.0.tgz?sig=abc", FormatTarGz},
		{"s3://bucket/libstemmer_c-3.0.0.tar.xz", FormatTarXz},
		{"/tmp/LIBSTEMMER.TAR.ZST", FormatTarZst},
		{"libstemmer.tar.lz4", FormatTarLz4},
		{"libstemmer.tar", FormatTar},
	}

	for _, tt := range tests {
		got, err := DetectFormat(tt.input)
		if err != nil {
			t.Errorf("DetectFormat(%q): unexpected error %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	if _, err := DetectFormat("libstemmer.zip"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("zip: got %v, want ErrConfiguration", err)
	}
}

func TestStripComponents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		n      int
		want   string
		wantOK bool
	}{
		{"top/src_c/a.c", 1, "src_c/a.c", true},
		{"./top/src_c/a.c", 1, "src_c/a.c", true},
		{"top/", 1, "", false},
		{"a.c", 0, "a.c", true},
		{"top/a.c", 2, "", false},
	}

	for _, tt := range tests {
		got, ok := stripComponents(tt.name, tt.n)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("stripComponents(%q, %d) = (%q, %v), want (%q, %v)", tt.name, tt.n, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCheckSymlink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rel, target string
		ok          bool
	}{
		{"include/stemmer.h", "libstemmer.h", true},
		{"include/stemmer.h", "../runtime/api.h", true},
		{"include/stemmer.h", "./api.h", true},
		{"a", "include/sub/x.h", true},
		{"a", ".", true},
		{"a", "..", false},
		{"include/x", "../..", false},
		{"l2", "d/l1/..", false},
		{"l2", "d/../x", false},
		{"a", "/etc/passwd", false},
		{"a", "", false},
		{"include/x", `..\..\evil`, false},
	}

	for _, tt := range tests {
		err := checkSymlink(tt.rel, tt.target)
		if (err == nil) != tt.ok {
			t.Errorf("checkSymlink(%q, %q) = %v, want ok=%v", tt.rel, tt.target, err, tt.ok)
		}
	}
}
