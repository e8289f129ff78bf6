// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/stembuild/stembuild/internal/buildcfg"
	"github.com/stembuild/stembuild/internal/config"
	"github.com/stembuild/stembuild/internal/issue"
	"github.com/stembuild/stembuild/internal/manifest"
	"github.com/stembuild/stembuild/internal/source"
	"github.com/stembuild/stembuild/pkg/types"
)

// ServiceError is an error that carries optional rendering information for
// the CLI layer. Always create via newServiceError to enforce the
// Err-must-be-non-nil invariant.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{
		Err:           err,
		IssueID:       issueID,
		StyledMessage: styledMessage,
	}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// classifyError maps a failure to its process exit code and issue catalog
// entry. Checksum mismatches are checked before network errors because a
// mismatch is never transient.
func classifyError(err error) (types.ExitCode, issue.Id) {
	switch {
	case errors.Is(err, source.ErrChecksumMismatch):
		return types.ExitChecksum, issue.ChecksumMismatchId
	case errors.Is(err, source.ErrNetwork):
		return types.ExitNetwork, issue.NetworkFailedId
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.ExitNetwork, 0
	case errors.Is(err, source.ErrExtraction):
		return types.ExitExtraction, issue.ExtractionFailedId
	case errors.Is(err, manifest.ErrManifestNotFound):
		return types.ExitManifest, issue.ManifestNotFoundId
	case errors.Is(err, manifest.ErrMalformedLine):
		return types.ExitManifest, issue.ManifestMalformedId
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrInvalidLoadOptions),
		errors.Is(err, source.ErrConfiguration),
		errors.Is(err, buildcfg.ErrInvalidLinkMode):
		return types.ExitConfiguration, issue.ConfigurationInvalidId
	}

	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.Issue != 0 {
		return types.ExitConfiguration, ae.Issue
	}
	return types.ExitConfiguration, 0
}

// failure renders err for the user and wraps it in an ExitError carrying
// the classified exit code.
func (a *App) failure(err error, verbose bool) error {
	code, issueID := classifyError(err)
	svcErr := newServiceError(err, issueID, styledErrorMessage(err, verbose))
	a.renderServiceError(svcErr)
	return &ExitError{Code: code, Err: svcErr}
}

// renderServiceError prints any styled message first, then the optional
// issue help section.
func (a *App) renderServiceError(svcErr *ServiceError) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(a.stderr, svcErr.StyledMessage)
	}

	if svcErr.IssueID == 0 {
		return
	}

	if catalogEntry := issue.Get(svcErr.IssueID); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render(a.issueStyle)
		if renderErr != nil {
			log.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", renderErr)
			return
		}
		fmt.Fprint(a.stderr, rendered)
	}
}

// styledErrorMessage formats err for stderr. Checksum failures show both
// digests so the mismatch can be compared with a trusted source.
func styledErrorMessage(err error, verbose bool) string {
	var checksumErr *source.ChecksumError
	if errors.As(err, &checksumErr) {
		return fmt.Sprintf("\n%s checksum verification failed for %s\n\n%s %s\n%s %s\n%s\n",
			ErrorStyle.Render("Error:"),
			checksumErr.Filename,
			renderLabelStyle.Render("Expected:"), checksumErr.Expected,
			renderLabelStyle.Render("Got:     "), checksumErr.Got,
			renderHintStyle.Render("The archive was not extracted."))
	}
	return fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
}

// formatErrorForDisplay uses ActionableError.Format when available so
// suggestions and, in verbose mode, the cause chain are shown.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
