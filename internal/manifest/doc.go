// SPDX-License-Identifier: MPL-2.0

// Package manifest reads the libstemmer_c make manifest (mkinc_utf8.mak) and
// filters it down to the C sources that make up the core library.
//
// The manifest is a hand-maintained make fragment: one path per physical
// line, with a trailing backslash continuing the variable onto the next line.
// Parse treats it as a line-oriented allow-list filter rather than a make
// grammar; Resolver layers the filesystem, path composition and strictness on
// top of it.
package manifest
