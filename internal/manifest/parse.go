// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
)

// continuation is the make line-continuation marker.
const continuation = `\`

// maxLineBytes bounds one manifest line. Longer lines are skipped with a
// diagnostic instead of failing the whole parse.
const maxLineBytes = 1 << 20

// Reasons attached to diagnostics.
const (
	ReasonMultipleFragments = "multiple path fragments on one line"
	ReasonNestedDirectory   = "nested directory under a core directory"
	ReasonExtensionCase     = "extension differs only in case"
	ReasonLineTooLong       = "line exceeds 1 MiB and was skipped"
)

type (
	// CoreDirectorySet is the allow-list of top-level directories whose
	// sources belong to the library.
	CoreDirectorySet map[string]struct{}

	// Filter selects manifest entries by directory and file extension.
	Filter struct {
		CoreDirs  CoreDirectorySet
		Extension string
	}

	// Entry is an accepted manifest line.
	Entry struct {
		Line int
		// Path is the slash-separated path relative to the distribution root.
		Path string
	}

	// Diagnostic describes a line that resembles a core source entry but was
	// rejected by the filter.
	Diagnostic struct {
		Line   int
		Text   string
		Reason string
	}

	// ParseResult is the outcome of Parse.
	ParseResult struct {
		Entries     []Entry
		Diagnostics []Diagnostic
	}
)

// NewCoreDirectorySet builds a set from directory names.
func NewCoreDirectorySet(dirs ...string) CoreDirectorySet {
	s := make(CoreDirectorySet, len(dirs))
	for _, d := range dirs {
		s[strings.Trim(d, "/")] = struct{}{}
	}
	return s
}

// Contains reports whether dir is in the set.
func (s CoreDirectorySet) Contains(dir string) bool {
	_, ok := s[dir]
	return ok
}

// Sorted returns the directory names in lexical order.
func (s CoreDirectorySet) Sorted() []string {
	dirs := make([]string, 0, len(s))
	for d := range s {
		dirs = append(dirs, d)
	}
	slices.Sort(dirs)
	return dirs
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s: %q", d.Line, d.Reason, d.Text)
}

// Parse reads manifest lines from r and returns the entries accepted by f.
// Each physical line is trimmed and loses a trailing continuation marker; the
// remainder is accepted when its directory is in f.CoreDirs and its file name
// ends in f.Extension. Everything else (variable headers, comments, blank
// lines, other directories) is skipped. Lines that nearly match, and lines
// longer than 1 MiB, are reported as diagnostics.
func Parse(r io.Reader, f Filter) (*ParseResult, error) {
	res := &ParseResult{}

	br := bufio.NewReader(r)
	lineNo := 0
	for {
		raw, tooLong, err := readLine(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading manifest: %w", err)
		}
		lineNo++
		if tooLong {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{Line: lineNo, Text: truncate(raw, 64), Reason: ReasonLineTooLong})
			continue
		}

		text := cleanLine(raw)
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		if fields := strings.Fields(text); len(fields) > 1 {
			if slices.ContainsFunc(fields, f.matches) {
				res.Diagnostics = append(res.Diagnostics, Diagnostic{Line: lineNo, Text: text, Reason: ReasonMultipleFragments})
			}
			continue
		}

		if f.matches(text) {
			res.Entries = append(res.Entries, Entry{Line: lineNo, Path: text})
			continue
		}
		if reason := f.nearMiss(text); reason != "" {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{Line: lineNo, Text: text, Reason: reason})
		}
	}

	return res, nil
}

// readLine returns the next line without its terminator. Bytes beyond
// maxLineBytes are discarded and reported through tooLong.
func readLine(br *bufio.Reader) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			return "", false, err
		}
		if len(buf)+len(chunk) <= maxLineBytes {
			buf = append(buf, chunk...)
		} else {
			tooLong = true
		}
		if !isPrefix {
			return string(buf), tooLong, nil
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func cleanLine(raw string) string {
	text := strings.TrimSpace(raw)
	if trimmed, ok := strings.CutSuffix(text, continuation); ok {
		text = strings.TrimSpace(trimmed)
	}
	return text
}

func splitEntry(text string) (dir, name string) {
	dir, name = path.Split(text)
	return strings.TrimSuffix(dir, "/"), name
}

func (f Filter) matches(text string) bool {
	dir, name := splitEntry(text)
	return f.hasExtension(name) && f.CoreDirs.Contains(dir)
}

func (f Filter) hasExtension(name string) bool {
	return len(name) > len(f.Extension) && strings.HasSuffix(name, f.Extension)
}

func (f Filter) nearMiss(text string) string {
	dir, name := splitEntry(text)
	top, _, nested := strings.Cut(dir, "/")
	if !f.CoreDirs.Contains(top) {
		return ""
	}

	switch {
	case nested && f.hasExtension(name):
		return ReasonNestedDirectory
	case !nested && len(name) > len(f.Extension) &&
		strings.EqualFold(name[len(name)-len(f.Extension):], f.Extension):
		return ReasonExtensionCase
	default:
		return ""
	}
}
