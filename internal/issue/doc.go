// SPDX-License-Identifier: MPL-2.0

// Package issue turns build failures into user-facing guidance: a catalog of
// Markdown explanations (rendered with glamour) keyed by failure kind, and
// ActionableError, which carries the failed operation, the resource involved
// and concrete suggestions.
package issue
