// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for stembuild.
//
// This package implements the Cobra command hierarchy for the stembuild CLI:
// bootstrapping the libstemmer_c source tree, composing the native build
// configuration for the stemmer extension, and inspecting configuration.
package cmd
