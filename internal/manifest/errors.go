// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
)

var (
	// ErrManifestNotFound is returned when the manifest file does not exist
	// in the extracted tree.
	ErrManifestNotFound = errors.New("manifest not found")

	// ErrMalformedLine is returned in strict mode for a line that looks like
	// a core source entry but does not pass the filter.
	ErrMalformedLine = errors.New("malformed manifest line")
)

type (
	// NotFoundError reports the manifest path that was expected.
	NotFoundError struct {
		Path string
	}

	// ParseError reports the first suspicious line found in strict mode.
	ParseError struct {
		Path       string
		Diagnostic Diagnostic
	}
)

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("manifest not found at %s (acquisition incomplete or upstream layout changed)", e.Path)
}

func (e *NotFoundError) Unwrap() error { return ErrManifestNotFound }

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %q", e.Path, e.Diagnostic.Line, e.Diagnostic.Reason, e.Diagnostic.Text)
}

func (e *ParseError) Unwrap() error { return ErrMalformedLine }
