// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"fmt"
	"strings"
)

type (
	// ActionableError is an error with context for user-facing error messages:
	// what operation failed, what resource was involved, and how to fix it.
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("fetch libstemmer_c").
	//		WithResource(url).
	//		WithIssue(issue.NetworkFailedId).
	//		WithSuggestion("Check your proxy settings").
	//		Wrap(cause).
	//		BuildError()
	ActionableError struct {
		// Operation is a verb phrase such as "fetch libstemmer_c".
		Operation string

		// Resource identifies the file, URL or directory involved (optional).
		Resource string

		// Issue selects the catalog entry shown with the error (optional).
		Issue Id

		Suggestions []string

		Cause error
	}

	// ErrorContext is a fluent builder for ActionableError.
	ErrorContext struct {
		operation   string
		resource    string
		issue       Id
		suggestions []string
		cause       error
	}
)

// NewErrorContext creates a new ErrorContext builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// WrapWithContext wraps an error with operation and resource context.
func WrapWithContext(err error, operation, resource string) *ActionableError {
	if err == nil {
		return nil
	}
	return &ActionableError{
		Operation: operation,
		Resource:  resource,
		Cause:     err,
	}
}

// Error returns "<operation> (<resource>): <cause>", matching the one-line
// form used in logs.
func (e *ActionableError) Error() string {
	msg := e.Operation
	if e.Resource != "" {
		msg += " (" + e.Resource + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause error for use with errors.Is/As.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format renders the error for a terminal: the one-line message, then the
// suggestions under "Try:". With verbose, the causes are listed as a tree,
// following both single and multi-error Unwrap.
func (e *ActionableError) Format(verbose bool) string {
	var msg strings.Builder
	msg.WriteString(e.Error())

	if e.HasSuggestions() {
		msg.WriteString("\n\nTry:")
		for _, s := range e.Suggestions {
			msg.WriteString("\n  - ")
			msg.WriteString(s)
		}
	}

	if verbose && e.Cause != nil {
		msg.WriteString("\n\nCauses:")
		writeCauses(&msg, e.Cause, 1)
	}

	return msg.String()
}

// writeCauses appends err and everything it wraps, one per line, indented
// by depth. Sentinels reached through several branches are printed each time.
func writeCauses(w *strings.Builder, err error, depth int) {
	fmt.Fprintf(w, "\n%s- %s", strings.Repeat("  ", depth), err.Error())

	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if inner != nil {
				writeCauses(w, inner, depth+1)
			}
		}
	case interface{ Unwrap() error }:
		if inner := u.Unwrap(); inner != nil {
			writeCauses(w, inner, depth+1)
		}
	}
}

// HasSuggestions returns true if the error has any suggestions.
func (e *ActionableError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// WithOperation sets the operation being performed.
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.operation = op
	return c
}

// WithResource sets the resource (file, URL, directory) involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.resource = res
	return c
}

// WithIssue attaches a catalog entry.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.issue = id
	return c
}

// WithSuggestion adds a suggestion. It can be called repeatedly.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.suggestions = append(c.suggestions, sug)
	return c
}

// WithSuggestions adds multiple suggestions at once.
func (c *ErrorContext) WithSuggestions(sugs ...string) *ErrorContext {
	c.suggestions = append(c.suggestions, sugs...)
	return c
}

// Wrap wraps an underlying error as the cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// Build creates an ActionableError from the context.
// Returns nil if no operation is set.
func (c *ErrorContext) Build() *ActionableError {
	if c.operation == "" {
		return nil
	}

	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Issue:       c.issue,
		Suggestions: c.suggestions,
		Cause:       c.cause,
	}
}

// BuildError is Build returning the error interface, for direct use in
// return statements. Returns nil if no operation is set.
func (c *ErrorContext) BuildError() error {
	ae := c.Build()
	if ae == nil {
		return nil
	}
	return ae
}
