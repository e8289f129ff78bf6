// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stembuild/stembuild/internal/manifest"
)

// sourcesParams bundles the inputs of runSources.
type sourcesParams struct {
	stdout   io.Writer
	resolver *manifest.Resolver
	relative bool
}

// newSourcesCommand creates the `stembuild sources` command, which lists
// the libstemmer_c C sources selected from the manifest of an already
// present source tree.
func newSourcesCommand(app *App, g *globalFlags) *cobra.Command {
	var (
		relative bool
		strict   bool
	)

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the vendored libstemmer_c sources to compile",
		Long: `List the vendored libstemmer_c sources to compile.

The manifest of the present source tree is read and filtered to the core
library directories. Nothing is downloaded; run 'stembuild bootstrap' first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true

			var overrides map[string]any
			if cmd.Flags().Changed("strict") {
				overrides = map[string]any{"manifest.strict": strict}
			}
			cfg, err := app.loadConfig(cmd.Context(), g, overrides)
			if err != nil {
				return app.failure(err, g.verbose)
			}
			dist, err := cfg.Distribution()
			if err != nil {
				return app.failure(err, g.verbose)
			}

			p := sourcesParams{
				stdout:   app.stdout,
				resolver: cfg.ManifestSettings().Resolver(dist.Directory, app.newLogger(g.verbose)),
				relative: relative,
			}
			if err := runSources(p); err != nil {
				return app.failure(err, g.verbose)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&relative, "relative", false, "print paths relative to the source tree")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on suspicious manifest lines instead of skipping them")

	return cmd
}

// runSources prints one selected source per line. Skipped manifest lines
// are reported by the resolver's logger.
func runSources(p sourcesParams) error {
	set, err := p.resolver.Resolve()
	if err != nil {
		return err
	}

	root, err := filepath.Abs(p.resolver.Root)
	if err != nil {
		return err
	}
	for _, path := range set.Paths {
		if p.relative {
			if rel, relErr := filepath.Rel(root, path); relErr == nil {
				path = filepath.ToSlash(rel)
			}
		}
		fmt.Fprintln(p.stdout, path)
	}

	return nil
}
