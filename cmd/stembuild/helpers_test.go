// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/stembuild/stembuild/internal/config"
	"github.com/stembuild/stembuild/pkg/types"
)

const testManifest = `# generated
snowball_sources= \
  src_c/stem_UTF_8_danish.c \
  runtime/api.c \
  libstemmer/libstemmer_utf8.c \
  examples/stemwords.c

snowball_headers= \
  src_c/stem_UTF_8_danish.h \
  include/libstemmer.h
`

type testCLI struct {
	app     *App
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	baseDir string
	// buildRoot is passed as --build-root on every run.
	buildRoot string
}

// newTestCLI returns an App isolated in temp directories, so neither the
// working directory nor the user config directory is consulted.
func newTestCLI(t *testing.T) *testCLI {
	t.Helper()

	c := &testCLI{
		stdout:    &bytes.Buffer{},
		stderr:    &bytes.Buffer{},
		baseDir:   t.TempDir(),
		buildRoot: t.TempDir(),
	}
	c.app = NewApp(Dependencies{
		Stdout:     c.stdout,
		Stderr:     c.stderr,
		BaseDir:    types.FilesystemPath(c.baseDir),
		ConfigDir:  types.FilesystemPath(t.TempDir()),
		IssueStyle: "notty",
	})
	return c
}

// run executes a fresh command tree with args. Output accumulates across
// calls.
func (c *testCLI) run(args ...string) error {
	root := NewRootCommand(c.app)
	root.SetArgs(append([]string{"--build-root", c.buildRoot}, args...))
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	return root.ExecuteContext(context.Background())
}

// writeProject writes stembuild.cue into the base directory.
func (c *testCLI) writeProject(t *testing.T, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(c.baseDir, config.ProjectFileName), []byte(body), 0o644); err != nil {
		t.Fatalf("writing project config: %v", err)
	}
}

// useServer points the project configuration at srv with the given digest.
func (c *testCLI) useServer(t *testing.T, srv *httptest.Server, checksum string) {
	t.Helper()
	c.writeProject(t, fmt.Sprintf("source_uri: %q\nchecksum: %q\n", srv.URL+"/libstemmer_c-%s.tar.gz", checksum))
}

// distDir is where the default version is extracted.
func (c *testCLI) distDir() string {
	return filepath.Join(c.buildRoot, "libstemmer_c-3.0.0")
}

// presentTree creates an extracted tree with testManifest.
func (c *testCLI) presentTree(t *testing.T) {
	t.Helper()
	for _, dir := range []string{"include", "src_c", "runtime", "libstemmer"} {
		if err := os.MkdirAll(filepath.Join(c.distDir(), dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(c.distDir(), "mkinc_utf8.mak"), []byte(testManifest), 0o644); err != nil {
		t.Fatal(err)
	}
}

// buildTarball returns a gzipped libstemmer_c-<version> tarball.
func buildTarball(t *testing.T, version string) []byte {
	t.Helper()

	top := "libstemmer_c-" + version + "/"
	files := []struct{ name, body string }{
		{top + "mkinc_utf8.mak", testManifest},
		{top + "include/libstemmer.h", "struct sb_stemmer;\n"},
		{top + "src_c/stem_UTF_8_danish.c", "int danish;\n"},
		{top + "runtime/api.c", "int api;\n"},
		{top + "libstemmer/libstemmer_utf8.c", "int stemmer;\n"},
		{top + "examples/stemwords.c", "int main(void) { return 0; }\n"},
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, f := range files {
		hdr := &tar.Header{Name: f.name, Mode: 0o644, Size: int64(len(f.body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing tar header: %v", err)
		}
		if _, err := tw.Write([]byte(f.body)); err != nil {
			t.Fatalf("writing tar body: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip: %v", err)
	}
	return buf.Bytes()
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// newTarballServer serves data on every path and counts requests. A nil
// data makes every request fail with 503.
func newTarballServer(t *testing.T, data []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if data == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// exitCode extracts the ExitError code from err, failing the test when err
// is not an ExitError.
func exitCode(t *testing.T, err error) types.ExitCode {
	t.Helper()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %T: %v", err, err)
	}
	return exitErr.Code
}
