// SPDX-License-Identifier: MPL-2.0

package buildcfg

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/stembuild/stembuild/internal/manifest"
	"github.com/stembuild/stembuild/internal/source"
)

// countingServer fails every request and counts them; the composer must not
// reach it in the scenarios below.
func countingServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestComposer(t *testing.T, srv *httptest.Server, opts ...ComposerOption) *Composer {
	t.Helper()
	acq := source.NewAcquirer(source.WithFetcher(source.NewHTTPFetcher(source.WithHTTPClient(srv.Client()))))
	return NewComposer(acq, opts...)
}

// presentDistribution creates an already-extracted tree with a manifest.
func presentDistribution(t *testing.T, srv *httptest.Server, manifestText string) *source.Distribution {
	t.Helper()
	dist, err := source.NewDistribution(source.DefaultVersion, t.TempDir(), srv.URL+"/libstemmer_c-%s.tar.gz", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dist.Directory, "include"), 0o755); err != nil {
		t.Fatal(err)
	}
	if manifestText != "" {
		if err := os.WriteFile(filepath.Join(dist.Directory, manifest.DefaultManifestPath), []byte(manifestText), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dist
}

func TestCompose_SystemLibraryNeverTouchesNetwork(t *testing.T) {
	t.Parallel()

	srv, hits := countingServer(t)
	dist, err := source.NewDistribution(source.DefaultVersion, t.TempDir(), srv.URL+"/a.tar.gz", "")
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := newTestComposer(t, srv).Compose(context.Background(), Request{UseSystemLibrary: true, Distribution: dist})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if hits.Load() != 0 {
		t.Errorf("system-library mode made %d requests", hits.Load())
	}
	if cfg.LinkMode != LinkSystemLibrary {
		t.Errorf("LinkMode = %q", cfg.LinkMode)
	}
	if !slices.Equal(cfg.SourceFiles, DefaultBindingSources) {
		t.Errorf("SourceFiles = %v, want binding sources only", cfg.SourceFiles)
	}
	if !slices.Equal(cfg.Libraries, []string{DefaultSystemLibrary}) || len(cfg.IncludeDirectories) != 0 {
		t.Errorf("Libraries = %v, IncludeDirectories = %v", cfg.Libraries, cfg.IncludeDirectories)
	}
	if _, err := os.Stat(dist.Directory); !os.IsNotExist(err) {
		t.Errorf("system-library mode created %s", dist.Directory)
	}
}

func TestCompose_SystemLibraryRejectsOverrides(t *testing.T) {
	t.Parallel()

	srv, hits := countingServer(t)
	tests := []Request{
		{UseSystemLibrary: true, URI: "https://mirror.example/libstemmer.tar.gz"},
		{UseSystemLibrary: true, Checksum: "d4eca4485f6d3cb4387626a5f508b9b3489d24737525c23ba58026159497a8bc"},
	}
	for _, req := range tests {
		_, err := newTestComposer(t, srv).Compose(context.Background(), req)
		if !errors.Is(err, source.ErrConfiguration) {
			t.Errorf("Compose(%+v): got %v, want ErrConfiguration", req, err)
		}
	}
	if hits.Load() != 0 {
		t.Errorf("made %d requests", hits.Load())
	}
}

func TestCompose_VendoredPresentResolvesWithoutNetwork(t *testing.T) {
	t.Parallel()

	srv, hits := countingServer(t)
	dist := presentDistribution(t, srv, "snowball_sources= \\\n  src_c/stem_UTF_8_danish.c \\\n  runtime/api.c\n  examples/stemwords.c\n")

	cfg, err := newTestComposer(t, srv).Compose(context.Background(), Request{Distribution: dist})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if hits.Load() != 0 {
		t.Errorf("vendored mode with a present tree made %d requests", hits.Load())
	}
	want := []string{
		"src/Stemmer.pyx",
		filepath.Join(dist.Directory, "runtime", "api.c"),
		filepath.Join(dist.Directory, "src_c", "stem_UTF_8_danish.c"),
	}
	if !slices.Equal(cfg.SourceFiles, want) {
		t.Errorf("SourceFiles = %v, want %v", cfg.SourceFiles, want)
	}
	if !slices.Equal(cfg.IncludeDirectories, []string{filepath.Join(dist.Directory, "include")}) {
		t.Errorf("IncludeDirectories = %v", cfg.IncludeDirectories)
	}
	if cfg.LinkMode != LinkVendored || cfg.LibraryVersion != source.DefaultVersion || len(cfg.Libraries) != 0 {
		t.Errorf("unexpected configuration %+v", cfg)
	}
}

func TestCompose_VendoredAlwaysReadsManifest(t *testing.T) {
	t.Parallel()

	srv, hits := countingServer(t)
	// Present tree without a manifest: resolution must run and fail.
	dist := presentDistribution(t, srv, "")

	_, err := newTestComposer(t, srv).Compose(context.Background(), Request{Distribution: dist})
	if !errors.Is(err, manifest.ErrManifestNotFound) {
		t.Fatalf("got %v, want ErrManifestNotFound", err)
	}
	if hits.Load() != 0 {
		t.Errorf("made %d requests", hits.Load())
	}
}

func TestCompose_VendoredAcquiresWhenAbsent(t *testing.T) {
	t.Parallel()

	srv, hits := countingServer(t)
	dist, err := source.NewDistribution(source.DefaultVersion, t.TempDir(), srv.URL+"/libstemmer_c-%s.tar.gz", "")
	if err != nil {
		t.Fatal(err)
	}

	_, err = newTestComposer(t, srv).Compose(context.Background(), Request{Distribution: dist})
	if !errors.Is(err, source.ErrNetwork) {
		t.Fatalf("got %v, want ErrNetwork", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want exactly one fetch attempt", hits.Load())
	}
}

func TestCompose_VendoredStrictManifest(t *testing.T) {
	t.Parallel()

	srv, _ := countingServer(t)
	dist := presentDistribution(t, srv, "runtime/api.c\nsrc_c/deep/x.c\n")

	lenient, err := newTestComposer(t, srv).Compose(context.Background(), Request{Distribution: dist})
	if err != nil {
		t.Fatalf("lenient: unexpected error: %v", err)
	}
	if len(lenient.Diagnostics) != 1 {
		t.Errorf("Diagnostics = %v, want one entry", lenient.Diagnostics)
	}

	_, err = newTestComposer(t, srv, WithManifest(ManifestSettings{Strict: true})).
		Compose(context.Background(), Request{Distribution: dist})
	if !errors.Is(err, manifest.ErrMalformedLine) {
		t.Errorf("strict: got %v, want ErrMalformedLine", err)
	}
}

func TestCompose_VendoredRequiresDistribution(t *testing.T) {
	t.Parallel()

	srv, _ := countingServer(t)
	_, err := newTestComposer(t, srv).Compose(context.Background(), Request{})
	if !errors.Is(err, source.ErrConfiguration) {
		t.Errorf("got %v, want ErrConfiguration", err)
	}
}

func TestCompose_CustomBinding(t *testing.T) {
	t.Parallel()

	srv, _ := countingServer(t)
	c := newTestComposer(t, srv,
		WithBinding(Binding{ExtensionName: "stemmer_ext", Sources: []string{"ext/stemmer.c"}}),
		WithSystemLibrary("stemmer2"),
	)

	cfg, err := c.Compose(context.Background(), Request{UseSystemLibrary: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ExtensionName != "stemmer_ext" || !slices.Equal(cfg.SourceFiles, []string{"ext/stemmer.c"}) || cfg.Libraries[0] != "stemmer2" {
		t.Errorf("unexpected configuration %+v", cfg)
	}
}

// recordingAcquirer checks that options reach the acquirer unchanged.
type recordingAcquirer struct {
	got source.AcquireOptions
	dir string
}

func (r *recordingAcquirer) Acquire(_ context.Context, _ *source.Distribution, opts source.AcquireOptions) (*source.AcquireResult, error) {
	r.got = opts
	return &source.AcquireResult{Directory: r.dir, Skipped: true}, nil
}

func TestCompose_ForwardsOverrides(t *testing.T) {
	t.Parallel()

	srv, _ := countingServer(t)
	dist := presentDistribution(t, srv, "runtime/api.c\n")
	acq := &recordingAcquirer{dir: dist.Directory}

	req := Request{Distribution: dist, URI: "https://mirror.example/x.tar.gz", Checksum: "AB"}
	if _, err := NewComposer(acq).Compose(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acq.got.URI != req.URI || acq.got.Checksum != req.Checksum {
		t.Errorf("acquirer received %+v", acq.got)
	}
}

func TestManifestSettings_Resolver(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	r := ManifestSettings{Path: "custom.mak", CoreDirs: []string{"runtime"}, Extension: ".cc", Strict: true}.Resolver(root, nil)
	if r.Root != root || r.ManifestPath != "custom.mak" || r.Extension != ".cc" || !r.Strict {
		t.Errorf("unexpected resolver %+v", r)
	}
	if got := r.Filter().CoreDirs.Sorted(); !slices.Equal(got, []string{"runtime"}) {
		t.Errorf("CoreDirs = %v", got)
	}

	defaults := ManifestSettings{}.Resolver(root, nil).Filter()
	if !slices.Equal(defaults.CoreDirs.Sorted(), []string{"include", "libstemmer", "runtime", "src_c"}) || defaults.Extension != manifest.DefaultExtension {
		t.Errorf("zero settings should keep package defaults, got %+v", defaults)
	}
}
