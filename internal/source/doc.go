// SPDX-License-Identifier: MPL-2.0

// Package source acquires the libstemmer_c source tree for a vendored build.
// It downloads a pinned archive, verifies its SHA256 digest, and unpacks it
// into one deterministic directory per version under a build root.
//
// The package is organized into these concerns:
//   - fetch.go, s3.go: Fetcher implementations (HTTP(S) and S3-compatible mirrors)
//   - checksum.go: SHA256 computation and verification
//   - codec.go, extract.go: archive decompression and path-safe tar extraction
//   - distribution.go: the Distribution value and its on-disk layout
//   - acquire.go: Acquirer, which composes the above with staging and atomic rename
package source
