// SPDX-License-Identifier: MPL-2.0

package source

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrNetwork is the sentinel wrapped by NetworkError.
	ErrNetwork = errors.New("network error")

	// ErrExtraction is the sentinel wrapped by ExtractionError.
	ErrExtraction = errors.New("extraction error")

	// ErrConfiguration is the sentinel wrapped by ConfigurationError.
	ErrConfiguration = errors.New("configuration error")
)

type (
	// NetworkError is returned when an archive cannot be retrieved: the
	// endpoint is unreachable, answers with a non-success status, or the
	// transfer ends short of the advertised length.
	NetworkError struct {
		URL        string // redacted for display
		StatusCode int    // 0 when no response was received
		Err        error
	}

	// ExtractionError is returned for malformed archives, unsafe entries, and
	// filesystem failures while unpacking.
	ExtractionError struct {
		Archive string
		Entry   string // empty when the failure is not tied to one entry
		Err     error
	}

	// ConfigurationError reports an invalid setting or an invalid combination
	// of settings, such as a malformed checksum override.
	ConfigurationError struct {
		Field  string
		Value  string
		Reason string
	}
)

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("fetching %s: unexpected status %d: %v", e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
	default:
		return "fetching " + e.URL
	}
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *NetworkError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNetwork}
	}
	return []error{ErrNetwork, e.Err}
}

func (e *ExtractionError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("extracting %s: entry %q: %v", e.Archive, e.Entry, e.Err)
	}
	return fmt.Sprintf("extracting %s: %v", e.Archive, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExtraction}
	}
	return []error{ErrExtraction, e.Err}
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap returns ErrConfiguration for errors.Is() compatibility.
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// redactURL strips credentials, query parameters, and fragments from a URL
// for inclusion in error messages and logs.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
