// SPDX-License-Identifier: MPL-2.0

// Package types defines small value types shared by the CLI, configuration
// and source packages. It imports only the standard library.
package types

import (
	"errors"
	"fmt"
	"strconv"
)

// Process exit codes, one per failure kind.
const (
	ExitSuccess       ExitCode = 0
	ExitConfiguration ExitCode = 1
	ExitNetwork       ExitCode = 2
	ExitChecksum      ExitCode = 3
	ExitExtraction    ExitCode = 4
	ExitManifest      ExitCode = 5
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode represents a process exit status code.
	// Exit codes are in the range 0-255 on POSIX systems.
	// The zero value (0) means success.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside the
	// valid range (0-255).
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == ExitSuccess }

// IsTransient reports whether re-running the command may succeed without
// changing its inputs. Only network failures qualify.
func (c ExitCode) IsTransient() bool { return c == ExitNetwork }

// Describe names the failure kind the code stands for.
func (c ExitCode) Describe() string {
	switch c {
	case ExitSuccess:
		return "success"
	case ExitConfiguration:
		return "configuration error"
	case ExitNetwork:
		return "network failure"
	case ExitChecksum:
		return "checksum mismatch"
	case ExitExtraction:
		return "extraction failure"
	case ExitManifest:
		return "manifest error"
	default:
		return "exit status " + c.String()
	}
}

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
