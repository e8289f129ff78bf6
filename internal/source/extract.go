// SPDX-License-Identifier: MPL-2.0

package source

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultMaxExtractBytes is the upper bound on the total size of regular
// files written by one Extract call (1 GB). Prevents decompression bombs.
const DefaultMaxExtractBytes = 1 << 30

var (
	errUnsafePath     = errors.New("path escapes the target directory")
	errUnsafeLink     = errors.New("link target escapes the target directory")
	errUnsupported    = errors.New("unsupported entry type")
	errSizeExceeded   = errors.New("extracted size exceeds limit")
	errThroughSymlink = errors.New("path traverses a symbolic link")
)

// ExtractOptions controls how an archive is unpacked.
type ExtractOptions struct {
	// Format selects the decompressor. Use DetectFormat to derive it from a name.
	Format Format
	// StripComponents drops this many leading path elements from every entry,
	// like tar --strip-components. Entries with fewer elements are skipped.
	StripComponents int
	// MaxBytes caps the total size of extracted regular files. Zero uses the default.
	MaxBytes int64
}

// Extract unpacks the archive at archivePath into targetDir, creating it if
// absent. Entries that would land outside targetDir (absolute names, ".."
// segments, links pointing outside, writes through symlinks) are refused.
//
// On error targetDir may hold a partial tree; callers that need atomicity
// extract into a staging directory and rename it on success, as Acquirer does.
func Extract(archivePath, targetDir string, opts ExtractOptions) error {
	fail := func(entry string, err error) error {
		return &ExtractionError{Archive: archivePath, Entry: entry, Err: err}
	}

	root, err := filepath.Abs(targetDir)
	if err != nil {
		return fail("", fmt.Errorf("resolving target directory: %w", err))
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fail("", fmt.Errorf("creating target directory: %w", err))
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fail("", fmt.Errorf("opening archive: %w", err))
	}
	defer func() {
		// Read-only file handle; close errors are exotic.
		_ = f.Close()
	}()

	r, closeDecoder, err := decompress(opts.Format, f)
	if err != nil {
		return fail("", err)
	}
	defer closeDecoder()

	budget := opts.MaxBytes
	if budget <= 0 {
		budget = DefaultMaxExtractBytes
	}

	tr := tar.NewReader(r)
	for {
		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			return nil
		}
		if nextErr != nil {
			return fail("", fmt.Errorf("reading tar entry: %w", nextErr))
		}

		if err := checkRelative(hdr.Name); err != nil {
			return fail(hdr.Name, err)
		}
		rel, ok := stripComponents(hdr.Name, opts.StripComponents)
		if !ok {
			continue
		}
		if err := ensureNoSymlinkParents(root, rel); err != nil {
			return fail(hdr.Name, err)
		}
		target := filepath.Join(root, filepath.FromSlash(rel))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirMode(hdr)); err != nil {
				return fail(hdr.Name, err)
			}
		case tar.TypeReg:
			if hdr.Size > budget {
				return fail(hdr.Name, errSizeExceeded)
			}
			n, err := writeFile(target, tr, fileMode(hdr), budget)
			if err != nil {
				return fail(hdr.Name, err)
			}
			budget -= n
		case tar.TypeSymlink:
			if err := checkSymlink(rel, hdr.Linkname); err != nil {
				return fail(hdr.Name, err)
			}
			if err := replaceWith(target, func() error { return os.Symlink(hdr.Linkname, target) }); err != nil {
				return fail(hdr.Name, err)
			}
		case tar.TypeLink:
			if checkRelative(hdr.Linkname) != nil {
				return fail(hdr.Name, errUnsafeLink)
			}
			linkRel, ok := stripComponents(hdr.Linkname, opts.StripComponents)
			if !ok {
				return fail(hdr.Name, errUnsafeLink)
			}
			if err := ensureNoSymlinkParents(root, linkRel); err != nil {
				return fail(hdr.Name, err)
			}
			oldname := filepath.Join(root, filepath.FromSlash(linkRel))
			// A hard link to a symlink keeps the relative target but not its depth.
			if info, err := os.Lstat(oldname); err == nil && info.Mode()&fs.ModeSymlink != 0 {
				return fail(hdr.Name, errUnsafeLink)
			}
			if err := replaceWith(target, func() error { return os.Link(oldname, target) }); err != nil {
				return fail(hdr.Name, err)
			}
		case tar.TypeXGlobalHeader:
			// git archive emits a pax_global_header entry carrying the commit id.
			continue
		default:
			return fail(hdr.Name, fmt.Errorf("%w: %q", errUnsupported, hdr.Typeflag))
		}
	}
}

// stripComponents removes n leading elements from a slash-separated name
// that already passed checkRelative. It reports false when nothing remains.
func stripComponents(name string, n int) (string, bool) {
	name = path.Clean(name)
	for i := 0; i < n; i++ {
		idx := strings.IndexByte(name, '/')
		if idx < 0 {
			return "", false
		}
		name = name[idx+1:]
	}
	if name == "" || name == "." {
		return "", false
	}
	return name, true
}

// checkRelative refuses archive names that are absolute or contain ".."
// segments. Such entries are rejected rather than sanitized.
func checkRelative(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return errUnsafePath
	}
	for _, seg := range strings.Split(strings.ReplaceAll(name, `\`, "/"), "/") {
		if seg == ".." {
			return errUnsafePath
		}
	}
	return nil
}

// checkSymlink verifies that a symlink created at rel pointing to linkname
// stays inside the root. Targets must climb with leading ".." segments only:
// once a name has been descended into it may be a symlink itself, so a later
// ".." would be resolved from wherever that link points. Every parent of rel
// is a real directory (see ensureNoSymlinkParents), so the leading climbs are
// resolved physically and are bounded by the depth of rel.
func checkSymlink(rel, linkname string) error {
	if linkname == "" || path.IsAbs(linkname) || filepath.IsAbs(linkname) || filepath.VolumeName(linkname) != "" {
		return errUnsafeLink
	}
	depth := strings.Count(rel, "/")
	descended := false
	for _, seg := range strings.Split(strings.ReplaceAll(linkname, `\`, "/"), "/") {
		switch seg {
		case "", ".":
		case "..":
			if descended || depth == 0 {
				return errUnsafeLink
			}
			depth--
		default:
			descended = true
		}
	}
	return nil
}

// ensureNoSymlinkParents refuses to create rel when any existing parent
// directory below root is a symlink. Without this, a link to "." followed by
// "link/../x" would land outside the root.
func ensureNoSymlinkParents(root, rel string) error {
	segs := strings.Split(rel, "/")
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		cur = filepath.Join(cur, seg)
		info, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return errThroughSymlink
		}
	}
	return nil
}

// replaceWith removes a non-directory at target, if any, then runs create.
// Later archive entries win over earlier ones, as with tar(1).
func replaceWith(target string, create func() error) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if info, err := os.Lstat(target); err == nil && !info.IsDir() {
		if err := os.Remove(target); err != nil {
			return err
		}
	}
	return create()
}

// writeFile copies at most limit bytes from r to target and returns the
// number of bytes written.
func writeFile(target string, r io.Reader, mode fs.FileMode, limit int64) (int64, error) {
	var n int64
	err := replaceWith(target, func() (err error) {
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, mode)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := out.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()

		n, err = io.Copy(out, io.LimitReader(r, limit+1))
		if err != nil {
			return err
		}
		if n > limit {
			return errSizeExceeded
		}
		return nil
	})
	return n, err
}

func fileMode(hdr *tar.Header) fs.FileMode {
	perm := hdr.FileInfo().Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	// Owner must be able to rewrite the tree on a later clean extraction.
	return perm | 0o600
}

func dirMode(hdr *tar.Header) fs.FileMode {
	return hdr.FileInfo().Mode().Perm() | 0o700
}
