// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	NetworkFailedId Id = iota + 1
	ChecksumMismatchId
	ExtractionFailedId
	ManifestNotFoundId
	ManifestMalformedId
	ConfigurationInvalidId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render returns the issue as terminal-formatted Markdown using the named
// glamour style ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	networkFailedIssue = &Issue{
		id: NetworkFailedId,
		mdMsg: `
# Could not download libstemmer_c

The source archive could not be retrieved. Nothing was written to the build root.

## Things you can try:
- Check your network connection and proxy settings, then re-run the build
- Point at a mirror you can reach:
~~~
$ stembuild bootstrap --libstemmer-url https://mirror.example/libstemmer_c-3.0.0.tar.gz \
    --libstemmer-sha256 <digest>
~~~
- Build against an installed libstemmer instead:
~~~
$ STEMBUILD_SYSTEM_LIBSTEMMER=1 stembuild build-config
~~~`,
		extLinks: []HttpLink{"https://snowballstem.org/download.html"},
	}

	checksumMismatchIssue = &Issue{
		id: ChecksumMismatchId,
		mdMsg: `
# Checksum mismatch

The downloaded archive does not match the expected SHA-256 digest, so it was
**not** extracted. Either the download was corrupted or the upstream artifact
changed.

## Things you can try:
- Re-run the build to rule out a corrupted transfer
- If upstream republished the archive, verify the new digest from a trusted
  source and pass it explicitly with ` + "`--libstemmer-sha256`" + `
- Never disable verification to work around this error`,
	}

	extractionFailedIssue = &Issue{
		id: ExtractionFailedId,
		mdMsg: `
# Could not extract the archive

The archive is malformed, contains unsafe paths, or the build root is not
writable. No partial source tree was left behind.

## Things you can try:
- Check free disk space and permissions on the build root
- Make sure the archive format matches its file name (.tar.gz, .tar.xz, .tar.zst, .tar.lz4, .tar)
- Re-run the build; a fresh download replaces the failed one`,
	}

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# Manifest not found

The libstemmer_c tree is present but ` + "`mkinc_utf8.mak`" + ` is missing. The
previous acquisition may have been tampered with, or the upstream layout changed.

## Things you can try:
- Delete the ` + "`libstemmer_c-<version>`" + ` directory and re-run ` + "`stembuild bootstrap`" + `
- If upstream moved the manifest, set ` + "`manifest.path`" + ` in stembuild.cue`,
	}

	manifestMalformedIssue = &Issue{
		id: ManifestMalformedId,
		mdMsg: `
# Suspicious manifest line

Strict mode found a manifest line that looks like a core source but does not
match the expected ` + "`<dir>/<name>.c`" + ` shape.

## Things you can try:
- Inspect the reported line with ` + "`stembuild sources`" + `
- Re-run without ` + "`--strict`" + ` to skip the line with a warning`,
	}

	configurationInvalidIssue = &Issue{
		id: ConfigurationInvalidId,
		mdMsg: `
# Invalid configuration

A setting, or a combination of settings, is not valid.

## Things you can try:
- Archive URL and checksum overrides cannot be combined with system-library mode
- Checksums must be 64 hexadecimal characters
- Versions must have exactly three numeric components, e.g. ` + "`3.0.0`" + `
- Show the effective configuration:
~~~
$ stembuild config show
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

The configuration file could not be read or does not match the schema.

## Things you can try:
- Check the CUE syntax of stembuild.cue
- Compare it with a freshly generated one:
~~~
$ stembuild config init --output /tmp/stembuild.cue
~~~`,
	}

	issues = map[Id]*Issue{
		networkFailedIssue.Id():        networkFailedIssue,
		checksumMismatchIssue.Id():     checksumMismatchIssue,
		extractionFailedIssue.Id():     extractionFailedIssue,
		manifestNotFoundIssue.Id():     manifestNotFoundIssue,
		manifestMalformedIssue.Id():    manifestMalformedIssue,
		configurationInvalidIssue.Id(): configurationInvalidIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
	}
)

// Values returns all issues ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
