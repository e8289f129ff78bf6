// SPDX-License-Identifier: MPL-2.0

package buildcfg

import (
	"errors"
	"fmt"
)

const (
	// LinkVendored compiles the libstemmer_c sources into the extension.
	LinkVendored LinkMode = "vendored"
	// LinkSystemLibrary links against a pre-installed libstemmer.
	LinkSystemLibrary LinkMode = "system_library"
)

// ErrInvalidLinkMode is the sentinel error wrapped by InvalidLinkModeError.
var ErrInvalidLinkMode = errors.New("invalid link mode")

type (
	// LinkMode selects how the extension obtains libstemmer.
	LinkMode string

	// InvalidLinkModeError is returned for values other than the two modes.
	InvalidLinkModeError struct {
		Value LinkMode
	}
)

// ModeFor maps the system-library toggle to a LinkMode.
func ModeFor(useSystemLibrary bool) LinkMode {
	if useSystemLibrary {
		return LinkSystemLibrary
	}
	return LinkVendored
}

// String returns the string representation of the LinkMode.
func (m LinkMode) String() string { return string(m) }

// Validate returns an error unless m is one of the defined modes.
func (m LinkMode) Validate() error {
	switch m {
	case LinkVendored, LinkSystemLibrary:
		return nil
	default:
		return &InvalidLinkModeError{Value: m}
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m LinkMode) MarshalText() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return []byte(m), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *LinkMode) UnmarshalText(text []byte) error {
	v := LinkMode(text)
	if err := v.Validate(); err != nil {
		return err
	}
	*m = v
	return nil
}

func (e *InvalidLinkModeError) Error() string {
	return fmt.Sprintf("invalid link mode %q (expected %q or %q)", e.Value, LinkVendored, LinkSystemLibrary)
}

// Unwrap returns ErrInvalidLinkMode for errors.Is() compatibility.
func (e *InvalidLinkModeError) Unwrap() error { return ErrInvalidLinkMode }
