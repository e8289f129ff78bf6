// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the stembuild command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "stembuild",
		Short: "Fetch libstemmer_c and compose the stemmer extension build",
		Long: TitleStyle.Render("stembuild") + SubtitleStyle.Render(" - Build-time helper for the Snowball stemmer extension") + `

stembuild downloads the libstemmer_c source archive, verifies its SHA-256
digest, extracts it atomically into the build root, and turns its
mkinc_utf8.mak manifest into the list of C sources to compile. When a
system libstemmer is available it composes a build that links against it
instead and never touches the network.

` + SubtitleStyle.Render("Examples:") + `
  stembuild bootstrap                  Download the pinned libstemmer_c
  stembuild build-config               Print the extension build (JSON)
  stembuild build-config -f toml -o build.toml
  stembuild sources                    List the vendored C sources
  stembuild status                     Is the source tree present?
  stembuild config show                Show the effective configuration`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "enable verbose output")
	pf.StringVar(&g.configPath, "config", "", "config file (default is ./stembuild.cue, then the user config dir)")
	pf.StringVar(&g.envFile, "env-file", "", "dotenv file to load (default is ./.env when present)")
	pf.StringVar(&g.buildRoot, "build-root", "", "directory the libstemmer_c tree is extracted into")
	pf.StringVar(&g.version, "libstemmer-version", "", "libstemmer_c version to build against; a binding version like 3.0.0.1 selects 3.0.0")

	rootCmd.AddCommand(
		newBootstrapCommand(app, g),
		newBuildConfigCommand(app, g),
		newSourcesCommand(app, g),
		newStatusCommand(app, g),
		newConfigCommand(app, g),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the command tree and runs it. This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})

	// fang overrides rootCmd.Version, so the version is passed explicitly.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Retryable() {
				fmt.Fprintln(os.Stderr, SubtitleStyle.Render("This failure may be transient; re-running the build can succeed."))
			}
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}
