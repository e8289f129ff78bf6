// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	// defaultMaxArchiveBytes bounds a single download (256 MB). The upstream
	// libstemmer_c tarball is well under 1 MB.
	defaultMaxArchiveBytes = 256 << 20

	// downloadPattern names temp files so they sort out of the way of
	// version directories in the build root.
	downloadPattern = ".stembuild-download-*"
)

type (
	// Fetcher retrieves the archive at uri into a new file under dir.
	// Implementations must remove the file on any failure path.
	Fetcher interface {
		Fetch(ctx context.Context, uri, dir string) (*FetchResult, error)
	}

	// FetchResult describes a completed download. The caller owns Path.
	FetchResult struct {
		Path  string
		Bytes int64
	}

	// HTTPFetcher downloads archives over HTTP(S).
	HTTPFetcher struct {
		httpClient *http.Client
		userAgent  string
		maxBytes   int64
		timeout    time.Duration
	}

	// HTTPOption configures an HTTPFetcher during construction.
	HTTPOption func(*HTTPFetcher)

	// MultiFetcher dispatches to a Fetcher by URI scheme.
	MultiFetcher map[string]Fetcher
)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy configurations.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		f.httpClient = c
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithMaxBytes caps the size of a single download. Non-positive values keep the default.
func WithMaxBytes(n int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithTimeout bounds each Fetch call. Zero means no timeout beyond the caller's context.
func WithTimeout(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		f.timeout = d
	}
}

// NewHTTPFetcher creates an HTTPFetcher. The default client disables
// transparent decompression: some servers label tarballs with
// Content-Encoding: gzip and the stored bytes would no longer match the
// published digest.
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		userAgent: "stembuild/dev",
		maxBytes:  defaultMaxArchiveBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.httpClient == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.DisableCompression = true
		f.httpClient = &http.Client{Transport: t}
	}
	return f
}

// Fetch downloads uri into a temp file under dir.
func (f *HTTPFetcher) Fetch(ctx context.Context, uri, dir string) (*FetchResult, error) {
	u, err := url.Parse(uri)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &ConfigurationError{Field: "source URI", Value: redactURL(uri), Reason: "must be an absolute http(s) URL"}
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, http.NoBody)
	if err != nil {
		return nil, &NetworkError{URL: redactURL(uri), Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: redactURL(uri), Err: err}
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{URL: redactURL(uri), StatusCode: resp.StatusCode}
	}

	if resp.ContentLength > f.maxBytes {
		return nil, &NetworkError{
			URL: redactURL(uri),
			Err: fmt.Errorf("archive is %d bytes, limit is %d", resp.ContentLength, f.maxBytes),
		}
	}

	return writeTemp(dir, uri, resp.Body, resp.ContentLength, f.maxBytes)
}

// writeTemp copies body into a new temp file under dir. expected is the
// advertised length (-1 when unknown); a shorter body is a truncated transfer.
func writeTemp(dir, uri string, body io.Reader, expected, maxBytes int64) (_ *FetchResult, err error) {
	tmp, err := os.CreateTemp(dir, downloadPattern)
	if err != nil {
		return nil, &ExtractionError{Archive: redactURL(uri), Err: fmt.Errorf("creating temp file: %w", err)}
	}
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = &ExtractionError{Archive: redactURL(uri), Err: fmt.Errorf("closing temp file: %w", closeErr)}
		}
		if err != nil {
			// Best-effort removal of a partially written temp file.
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err := io.Copy(tmp, io.LimitReader(body, maxBytes+1))
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return nil, &ExtractionError{Archive: redactURL(uri), Err: fmt.Errorf("writing to temp file: %w", err)}
		}
		return nil, &NetworkError{URL: redactURL(uri), Err: err}
	}
	if n > maxBytes {
		return nil, &NetworkError{URL: redactURL(uri), Err: fmt.Errorf("archive exceeds %d bytes", maxBytes)}
	}
	if expected >= 0 && n != expected {
		return nil, &NetworkError{
			URL: redactURL(uri),
			Err: fmt.Errorf("truncated transfer: got %d of %d bytes: %w", n, expected, io.ErrUnexpectedEOF),
		}
	}

	return &FetchResult{Path: tmp.Name(), Bytes: n}, nil
}

// Fetch selects the Fetcher registered for the scheme of uri.
func (m MultiFetcher) Fetch(ctx context.Context, uri, dir string) (*FetchResult, error) {
	scheme := ""
	if u, err := url.Parse(uri); err == nil {
		scheme = strings.ToLower(u.Scheme)
	}
	f, ok := m[scheme]
	if !ok {
		return nil, &ConfigurationError{
			Field:  "source URI",
			Value:  redactURL(uri),
			Reason: fmt.Sprintf("unsupported scheme %q", scheme),
		}
	}
	return f.Fetch(ctx, uri, dir)
}
