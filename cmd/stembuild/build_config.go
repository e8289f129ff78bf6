// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/stembuild/stembuild/internal/buildcfg"
	"github.com/stembuild/stembuild/internal/config"
)

// buildConfigParams bundles the inputs of runBuildConfig.
type buildConfigParams struct {
	stdout   io.Writer
	stderr   io.Writer
	composer *buildcfg.Composer
	request  buildcfg.Request
	format   buildcfg.Format
	output   string // empty = stdout
}

// newBuildConfigCommand creates the `stembuild build-config` command, which
// prints or writes the native build configuration of the extension.
func newBuildConfigCommand(app *App, g *globalFlags) *cobra.Command {
	var (
		formatFlag string
		output     string
		uri        string
		checksum   string
		systemLib  bool
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "build-config",
		Short: "Compose the build configuration of the stemmer extension",
		Long: `Compose the build configuration of the stemmer extension.

In vendored mode (the default) libstemmer_c is acquired when absent and its
manifest is resolved into the list of C sources and include directories.
With --system-library, or when STEMBUILD_SYSTEM_LIBSTEMMER is true, the
extension links against an installed libstemmer and nothing is fetched.`,
		Example: `  # JSON on stdout
  stembuild build-config

  # TOML written atomically to a file
  stembuild build-config --format toml --output build/stemmer.toml

  # Link against the system library
  stembuild build-config --system-library`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true

			format, err := buildcfg.ParseFormat(formatFlag)
			if err != nil {
				return app.failure(err, g.verbose)
			}

			overrides := map[string]any{}
			if cmd.Flags().Changed("system-library") {
				overrides["system_library"] = strconv.FormatBool(systemLib)
			}
			if cmd.Flags().Changed("strict") {
				overrides["manifest.strict"] = strict
			}

			cfg, err := app.loadConfig(cmd.Context(), g, overrides)
			if err != nil {
				return app.failure(err, g.verbose)
			}

			logger := app.newLogger(g.verbose)
			composer, req, err := app.newComposer(cfg, logger)
			if err != nil {
				return app.failure(err, g.verbose)
			}
			req.URI = uri
			req.Checksum = checksum

			p := buildConfigParams{
				stdout:   app.stdout,
				stderr:   app.stderr,
				composer: composer,
				request:  req,
				format:   format,
				output:   output,
			}
			if err := runBuildConfig(cmd.Context(), p); err != nil {
				return app.failure(err, g.verbose)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatFlag, "format", "f", string(buildcfg.FormatJSON), "output format: json, toml or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().StringVar(&uri, "libstemmer-url", "", "archive URL overriding the configured source")
	cmd.Flags().StringVar(&checksum, "libstemmer-sha256", "", "expected SHA-256 of the archive")
	cmd.Flags().BoolVar(&systemLib, "system-library", false, "link against an installed libstemmer")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on suspicious manifest lines instead of skipping them")

	return cmd
}

// newComposer builds the Composer and base Request for cfg. The acquirer is
// only built for vendored builds so a system-library build never depends on
// fetch settings.
func (a *App) newComposer(cfg *config.Config, logger *log.Logger) (*buildcfg.Composer, buildcfg.Request, error) {
	useSystem, err := cfg.UseSystemLibrary()
	if err != nil {
		return nil, buildcfg.Request{}, err
	}
	req := buildcfg.Request{UseSystemLibrary: useSystem}

	var acquirer buildcfg.Acquirer
	if !useSystem {
		dist, err := cfg.Distribution()
		if err != nil {
			return nil, buildcfg.Request{}, err
		}
		req.Distribution = dist

		if acquirer, err = a.newAcquirer(cfg, logger); err != nil {
			return nil, buildcfg.Request{}, err
		}
	}

	composer := buildcfg.NewComposer(acquirer,
		buildcfg.WithBinding(cfg.BindingSettings()),
		buildcfg.WithSystemLibrary(cfg.SystemLibraryName),
		buildcfg.WithManifest(cfg.ManifestSettings()),
		buildcfg.WithLogger(logger),
	)
	return composer, req, nil
}

// runBuildConfig composes the configuration and writes it out. Status
// messages go to stderr so stdout stays parseable.
func runBuildConfig(ctx context.Context, p buildConfigParams) error {
	cfg, err := p.composer.Compose(ctx, p.request)
	if err != nil {
		return err
	}

	if p.output == "" {
		return buildcfg.Encode(p.stdout, cfg, p.format)
	}
	if err := buildcfg.WriteFile(p.output, cfg, p.format); err != nil {
		return err
	}
	fmt.Fprintf(p.stderr, "%s Wrote %s build configuration to %s\n",
		SuccessStyle.Render("✓"), cfg.LinkMode, CmdStyle.Render(p.output))
	return nil
}
