// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/stembuild/stembuild/internal/config"
	"github.com/stembuild/stembuild/internal/issue"
	"github.com/stembuild/stembuild/internal/manifest"
	"github.com/stembuild/stembuild/internal/source"
	"github.com/stembuild/stembuild/pkg/types"
)

func TestNewServiceError_PanicsOnNilErr(t *testing.T) {
	t.Parallel()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on nil Err, got none")
		}
		msg, ok := r.(string)
		if !ok {
			t.Fatalf("expected string panic, got %T", r)
		}
		if msg != "ServiceError: Err must not be nil" {
			t.Fatalf("unexpected panic message: %s", msg)
		}
	}()

	newServiceError(nil, 0, "")
}

func TestServiceError_ErrorAndUnwrap(t *testing.T) {
	t.Parallel()

	underlying := errors.New("underlying error")
	svcErr := newServiceError(underlying, 0, "")

	if svcErr.Error() != "underlying error" {
		t.Errorf("Error() = %q, want %q", svcErr.Error(), "underlying error")
	}
	if !errors.Is(svcErr, underlying) {
		t.Error("errors.Is should find underlying error via Unwrap")
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantCode  types.ExitCode
		wantIssue issue.Id
	}{
		{
			name:      "checksum mismatch",
			err:       &source.ChecksumError{Filename: "x.tar.gz", Expected: "aa", Got: "bb"},
			wantCode:  types.ExitChecksum,
			wantIssue: issue.ChecksumMismatchId,
		},
		{
			name:      "network",
			err:       &source.NetworkError{URL: "https://example.org/x.tar.gz", Err: errors.New("connection refused")},
			wantCode:  types.ExitNetwork,
			wantIssue: issue.NetworkFailedId,
		},
		{
			name:     "canceled",
			err:      fmt.Errorf("acquisition canceled: %w", context.Canceled),
			wantCode: types.ExitNetwork,
		},
		{
			name:      "extraction",
			err:       &source.ExtractionError{Archive: "x.tar.gz", Err: errors.New("unexpected EOF")},
			wantCode:  types.ExitExtraction,
			wantIssue: issue.ExtractionFailedId,
		},
		{
			name: "local write failure during download",
			err: &source.ExtractionError{
				Archive: "https://example.org/libstemmer_c-3.0.0.tar.gz",
				Err:     fmt.Errorf("writing to temp file: %w", fs.ErrPermission),
			},
			wantCode:  types.ExitExtraction,
			wantIssue: issue.ExtractionFailedId,
		},
		{
			name:      "manifest missing",
			err:       &manifest.NotFoundError{Path: "/tmp/mkinc_utf8.mak"},
			wantCode:  types.ExitManifest,
			wantIssue: issue.ManifestNotFoundId,
		},
		{
			name:      "manifest malformed",
			err:       &manifest.ParseError{Path: "/tmp/mkinc_utf8.mak", Diagnostic: manifest.Diagnostic{Line: 3, Text: "src_c/a/b.c", Reason: manifest.ReasonNestedDirectory}},
			wantCode:  types.ExitManifest,
			wantIssue: issue.ManifestMalformedId,
		},
		{
			name:      "configuration",
			err:       &source.ConfigurationError{Field: "version", Value: "3", Reason: "bad"},
			wantCode:  types.ExitConfiguration,
			wantIssue: issue.ConfigurationInvalidId,
		},
		{
			name:      "invalid config",
			err:       &config.InvalidConfigError{FieldErrors: []error{errors.New("boom")}},
			wantCode:  types.ExitConfiguration,
			wantIssue: issue.ConfigurationInvalidId,
		},
		{
			name: "actionable error keeps its issue",
			err: issue.NewErrorContext().
				WithOperation("load configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(errors.New("syntax error")).
				BuildError(),
			wantCode:  types.ExitConfiguration,
			wantIssue: issue.ConfigLoadFailedId,
		},
		{
			name:     "unknown",
			err:      errors.New("something else"),
			wantCode: types.ExitConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, id := classifyError(tt.err)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if id != tt.wantIssue {
				t.Errorf("issue = %d, want %d", id, tt.wantIssue)
			}
		})
	}
}

func TestFailure_RendersIssueAndWrapsExitError(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	app := NewApp(Dependencies{Stdout: &bytes.Buffer{}, Stderr: &stderr, IssueStyle: "notty"})

	cause := &manifest.NotFoundError{Path: "/tmp/libstemmer_c-3.0.0/mkinc_utf8.mak"}
	err := app.failure(cause, false)

	if code := exitCode(t, err); code != types.ExitManifest {
		t.Errorf("exit code = %d, want %d", code, types.ExitManifest)
	}
	if !errors.Is(err, manifest.ErrManifestNotFound) {
		t.Error("failure must keep the cause reachable through errors.Is")
	}
	out := stderr.String()
	if !strings.Contains(out, "Error:") || !strings.Contains(out, "mkinc_utf8.mak") {
		t.Errorf("stderr missing styled message:\n%s", out)
	}
	if !strings.Contains(out, "bootstrap") {
		t.Errorf("stderr missing issue help text:\n%s", out)
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	ae := issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource("stembuild.cue").
		WithSuggestion("Check the syntax").
		Wrap(errors.New("unexpected token")).
		Build()

	got := formatErrorForDisplay(ae, false)
	if !strings.Contains(got, "Check the syntax") {
		t.Errorf("formatErrorForDisplay() = %q, want suggestions", got)
	}
	if strings.Contains(got, "Causes:") {
		t.Errorf("non-verbose output has error chain: %q", got)
	}
	if verbose := formatErrorForDisplay(ae, true); !strings.Contains(verbose, "Causes:") {
		t.Errorf("verbose output missing error chain: %q", verbose)
	}

	plain := errors.New("plain")
	if got := formatErrorForDisplay(plain, true); got != "plain" {
		t.Errorf("formatErrorForDisplay(plain) = %q", got)
	}
}
