// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/stembuild/stembuild/internal/buildcfg"
	"github.com/stembuild/stembuild/internal/source"
)

// statusParams bundles the inputs of runStatus.
type statusParams struct {
	stdout   io.Writer
	dist     *source.Distribution
	linkMode buildcfg.LinkMode
}

// newStatusCommand creates the `stembuild status` command, which reports
// whether the configured source tree is present without fetching anything.
func newStatusCommand(app *App, g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the libstemmer_c source tree is present",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true

			cfg, err := app.loadConfig(cmd.Context(), g, nil)
			if err != nil {
				return app.failure(err, g.verbose)
			}
			useSystem, err := cfg.UseSystemLibrary()
			if err != nil {
				return app.failure(err, g.verbose)
			}
			dist, err := cfg.Distribution()
			if err != nil {
				return app.failure(err, g.verbose)
			}

			p := statusParams{stdout: app.stdout, dist: dist, linkMode: buildcfg.ModeFor(useSystem)}
			if err := runStatus(p); err != nil {
				return app.failure(err, g.verbose)
			}
			return nil
		},
	}
}

func runStatus(p statusParams) error {
	present, err := p.dist.IsPresent()
	if err != nil {
		return err
	}

	state := source.StateAbsent
	stateStyle := WarningStyle
	if present {
		state = source.StatePresent
		stateStyle = SuccessStyle
	}

	fmt.Fprintln(p.stdout, TitleStyle.Render("libstemmer_c "+p.dist.Version))
	fmt.Fprintf(p.stdout, "  %s %s\n", CmdStyle.Render("directory:"), p.dist.Directory)
	fmt.Fprintf(p.stdout, "  %s %s\n", CmdStyle.Render("state:    "), stateStyle.Render(state.String()))
	fmt.Fprintf(p.stdout, "  %s %s\n", CmdStyle.Render("link mode:"), p.linkMode)
	return nil
}
