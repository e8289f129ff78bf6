// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against an embedded schema and
// turns CUE errors into messages that name the offending field in JSON-path
// form (for example "manifest.core_dirs[1]").
package cueutil
