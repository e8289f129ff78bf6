// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/stembuild/stembuild/pkg/types"
)

// ExitError carries the process exit code out of a RunE handler. The
// failure has already been rendered when it is returned.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the underlying message, or the exit status when there is none.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("stembuild: %s (exit status %d)", e.Code.Describe(), e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// Retryable reports whether re-running the same command may succeed.
func (e *ExitError) Retryable() bool {
	return e.Code.IsTransient()
}
