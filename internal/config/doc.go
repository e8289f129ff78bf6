// SPDX-License-Identifier: MPL-2.0

// Package config loads stembuild settings with Viper, using CUE as the file
// format.
//
// Sources, in increasing precedence: built-in defaults, the config file
// (./stembuild.cue, else config.cue in the user config directory, or the
// path passed with --config), STEMBUILD_* environment variables (optionally
// seeded from a .env file), and explicit overrides from command-line flags.
//
// Config files are validated against the embedded #Config schema
// (config_schema.cue) before they are merged.
package config
