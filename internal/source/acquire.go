// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// State is a step of the acquisition state machine:
// Absent -> Fetching -> Verifying -> Extracting -> Present, with any step
// able to move to Failed. Present is terminal.
type State int

const (
	StateAbsent State = iota
	StateFetching
	StateVerifying
	StateExtracting
	StatePresent
	StateFailed
)

// DefaultStripComponents removes the libstemmer_c-<version>/ wrapper that
// upstream tarballs put around the tree.
const DefaultStripComponents = 1

type (
	// AcquireOptions carries the caller-supplied overrides for one Acquire call.
	// Empty fields fall back to the Distribution's values.
	AcquireOptions struct {
		URI      string
		Checksum string
	}

	// AcquireResult describes the outcome of Acquire.
	AcquireResult struct {
		Directory string
		Skipped   bool  // true when the directory was already present
		Bytes     int64 // archive size; zero when Skipped
	}

	// Acquirer composes a Fetcher, SHA256 verification, and extraction into
	// an idempotent acquisition of a Distribution.
	Acquirer struct {
		fetcher         Fetcher
		logger          *log.Logger
		observer        func(State)
		stripComponents int
		maxExtractBytes int64
	}

	// AcquirerOption configures an Acquirer during construction.
	AcquirerOption func(*Acquirer)
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateFetching:
		return "fetching"
	case StateVerifying:
		return "verifying"
	case StateExtracting:
		return "extracting"
	case StatePresent:
		return "present"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// WithFetcher overrides the default HTTP fetcher.
func WithFetcher(f Fetcher) AcquirerOption {
	return func(a *Acquirer) {
		a.fetcher = f
	}
}

// WithLogger sets the logger used for progress messages.
func WithLogger(l *log.Logger) AcquirerOption {
	return func(a *Acquirer) {
		a.logger = l
	}
}

// WithStateObserver registers a callback invoked on every state transition.
func WithStateObserver(fn func(State)) AcquirerOption {
	return func(a *Acquirer) {
		a.observer = fn
	}
}

// WithStripComponents sets how many leading path elements are dropped from
// archive entries. Negative values are ignored.
func WithStripComponents(n int) AcquirerOption {
	return func(a *Acquirer) {
		if n >= 0 {
			a.stripComponents = n
		}
	}
}

// WithMaxExtractBytes caps the total extracted size. Zero or less keeps
// DefaultMaxExtractBytes.
func WithMaxExtractBytes(n int64) AcquirerOption {
	return func(a *Acquirer) {
		a.maxExtractBytes = n
	}
}

// NewAcquirer creates an Acquirer. Without WithFetcher it downloads over
// HTTP(S) with default settings.
func NewAcquirer(opts ...AcquirerOption) *Acquirer {
	a := &Acquirer{
		stripComponents: DefaultStripComponents,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.fetcher == nil {
		a.fetcher = NewHTTPFetcher()
	}
	if a.logger == nil {
		a.logger = log.New(io.Discard)
	}
	return a
}

// Acquire makes dist.Directory present. When it already exists, Acquire
// returns immediately without network access or verification. Otherwise the
// archive is fetched, verified against the resolved checksum, extracted into
// a staging directory, and renamed into place only after every step
// succeeded. On any failure, including cancellation of ctx, the staging
// directory and the downloaded archive are removed, so a failed acquisition
// is never mistaken for a present one.
//
// Concurrent Acquire calls for the same directory are not coordinated; the
// final rename makes the loser discard its copy.
func (a *Acquirer) Acquire(ctx context.Context, dist *Distribution, opts AcquireOptions) (*AcquireResult, error) {
	d, err := dist.WithOverrides(opts.URI, opts.Checksum)
	if err != nil {
		return nil, err
	}

	present, err := d.IsPresent()
	if err != nil {
		return nil, err
	}
	if present {
		a.logger.Debug("source tree already present", "dir", d.Directory)
		a.transition(StatePresent)
		return &AcquireResult{Directory: d.Directory, Skipped: true}, nil
	}
	a.transition(StateAbsent)

	format, err := DetectFormat(d.SourceURI)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(d.BuildRoot, 0o755); err != nil {
		return nil, d.filesystemError(fmt.Errorf("creating build root: %w", err))
	}

	result, err := a.acquire(ctx, d, format)
	if err != nil {
		a.transition(StateFailed)
		return nil, err
	}
	a.transition(StatePresent)
	return result, nil
}

func (a *Acquirer) acquire(ctx context.Context, d *Distribution, format Format) (*AcquireResult, error) {
	a.transition(StateFetching)
	a.logger.Info("fetching libstemmer_c", "version", d.Version, "url", redactURL(d.SourceURI))
	fetched, err := a.fetcher.Fetch(ctx, d.SourceURI, d.BuildRoot)
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(fetched.Path) }()

	a.transition(StateVerifying)
	if err := VerifyFile(fetched.Path, d.Checksum); err != nil {
		var checksumErr *ChecksumError
		if errors.As(err, &checksumErr) {
			// Report the source rather than the temp file name.
			checksumErr.Filename = redactURL(d.SourceURI)
		}
		return nil, err
	}
	a.logger.Debug("checksum verified", "sha256", d.Checksum, "bytes", fetched.Bytes)

	a.transition(StateExtracting)
	staging, err := os.MkdirTemp(d.BuildRoot, d.stagingPattern())
	if err != nil {
		return nil, d.filesystemError(fmt.Errorf("creating staging directory: %w", err))
	}
	renamed := false
	defer func() {
		if !renamed {
			_ = os.RemoveAll(staging)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquisition canceled: %w", err)
	}
	err = Extract(fetched.Path, staging, ExtractOptions{
		Format:          format,
		StripComponents: a.stripComponents,
		MaxBytes:        a.maxExtractBytes,
	})
	if err != nil {
		var extractErr *ExtractionError
		if errors.As(err, &extractErr) {
			extractErr.Archive = redactURL(d.SourceURI)
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquisition canceled: %w", err)
	}

	if err := os.Rename(staging, d.Directory); err != nil {
		// Another build may have finished first; its tree is equivalent.
		if present, _ := d.IsPresent(); present {
			a.logger.Warn("source tree appeared during extraction; keeping existing copy", "dir", d.Directory)
			return &AcquireResult{Directory: d.Directory, Bytes: fetched.Bytes}, nil
		}
		return nil, d.filesystemError(fmt.Errorf("finalizing %s: %w", d.Directory, err))
	}
	renamed = true

	a.logger.Info("libstemmer_c ready", "version", d.Version, "dir", d.Directory)
	return &AcquireResult{Directory: d.Directory, Bytes: fetched.Bytes}, nil
}

func (a *Acquirer) transition(s State) {
	if a.observer != nil {
		a.observer(s)
	}
}
