// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/spf13/cobra"

	"github.com/stembuild/stembuild/internal/config"
	"github.com/stembuild/stembuild/internal/issue"
	"github.com/stembuild/stembuild/internal/source"
	"github.com/stembuild/stembuild/pkg/types"
)

// newConfigCommand creates the `stembuild config` command tree.
func newConfigCommand(app *App, g *globalFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage stembuild configuration",
		Long: `Manage stembuild configuration.

Configuration is read from, in order of precedence:
  - STEMBUILD_* environment variables (and the .env file)
  - ./stembuild.cue in the project directory
  - the user config file:
      Linux:   ~/.config/stembuild/config.cue
      macOS:   ~/Library/Application Support/stembuild/config.cue
      Windows: %AppData%\stembuild\config.cue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var showJSON bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cfg, err := app.loadConfig(cmd.Context(), g, nil)
			if err != nil {
				return app.failure(err, g.verbose)
			}
			if showJSON {
				return writeConfigJSON(app.stdout, cfg)
			}
			showConfig(app.stdout, cfg)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the configuration as JSON")
	cfgCmd.AddCommand(showCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cfg, err := app.loadConfig(cmd.Context(), g, nil)
			if err != nil {
				return app.failure(err, g.verbose)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	var (
		initOutput string
		initForce  bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			path, err := app.initConfig(initOutput, initForce)
			if err != nil {
				return app.failure(err, g.verbose)
			}
			fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(path))
			return nil
		},
	}
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "", "file to create (default is the user config file)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := app.userConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Project file: %s\n", config.ProjectFileName)
			fmt.Fprintf(app.stdout, "Config directory: %s\n", dir)
			fmt.Fprintf(app.stdout, "Config file: %s\n", filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config) {
	keyStyle := CmdStyle
	valueStyle := SuccessStyle

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if cfg.SourcePath != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), cfg.SourcePath)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	systemLibrary := cfg.SystemLibrary
	if systemLibrary == "" {
		systemLibrary = "(unset)"
	}
	checksum := cfg.Checksum
	if lib, err := cfg.LibraryVersion(); checksum == "" && err == nil && lib == source.DefaultVersion {
		checksum = source.DefaultChecksum + " (pinned)"
	}

	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("version"), valueStyle.Render(cfg.Version))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("build_root"), valueStyle.Render(cfg.BuildRoot))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("source_uri"), valueStyle.Render(cfg.SourceURI))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("checksum"), valueStyle.Render(checksum))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("system_library"), valueStyle.Render(systemLibrary))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("system_library_name"), valueStyle.Render(cfg.SystemLibraryName))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("manifest"))
	fmt.Fprintf(w, "  path: %s\n", valueStyle.Render(cfg.Manifest.Path))
	fmt.Fprintf(w, "  core_dirs: %s\n", valueStyle.Render(fmt.Sprint(cfg.Manifest.CoreDirs)))
	fmt.Fprintf(w, "  extension: %s\n", valueStyle.Render(cfg.Manifest.Extension))
	fmt.Fprintf(w, "  strict: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Manifest.Strict)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("fetch"))
	fmt.Fprintf(w, "  timeout: %s\n", valueStyle.Render(cfg.Fetch.Timeout.String()))
	fmt.Fprintf(w, "  max_bytes: %s\n", valueStyle.Render(fmt.Sprint(cfg.Fetch.MaxBytes)))
	fmt.Fprintf(w, "  user_agent: %s\n", valueStyle.Render(cfg.Fetch.UserAgent))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("extract"))
	fmt.Fprintf(w, "  strip_components: %s\n", valueStyle.Render(fmt.Sprint(cfg.Extract.StripComponents)))
	fmt.Fprintf(w, "  max_bytes: %s\n", valueStyle.Render(fmt.Sprint(cfg.Extract.MaxBytes)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("mirror"))
	if cfg.Mirror.Endpoint == "" {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
		return
	}
	fmt.Fprintf(w, "  endpoint: %s\n", valueStyle.Render(cfg.Mirror.Endpoint))
	fmt.Fprintf(w, "  region: %s\n", valueStyle.Render(cfg.Mirror.Region))
	fmt.Fprintf(w, "  use_ssl: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Mirror.UseSSL)))
}

// writeConfigJSON prints cfg as indented JSON. The mirror secret key has no
// JSON name and is never printed.
func writeConfigJSON(w io.Writer, cfg *config.Config) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

func (a *App) userConfigDir() (string, error) {
	if a.configDir != "" {
		return string(a.configDir), nil
	}
	return config.ConfigDir()
}

// initConfig writes the default configuration to output, or to the user
// config file when output is empty, and returns the path written.
func (a *App) initConfig(output string, force bool) (string, error) {
	path := output
	if path == "" {
		dir, err := a.userConfigDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", issue.NewErrorContext().
				WithOperation("create configuration").
				WithResource(path).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Pass --force to overwrite it").
				WithSuggestion("Use 'stembuild config init --output <file>' to write elsewhere").
				Wrap(fs.ErrExist).
				BuildError()
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", issue.WrapWithContext(err, "create config directory", filepath.Dir(path))
	}
	if err := renameio.WriteFile(path, []byte(config.GenerateCUE(config.DefaultConfig())), 0o644); err != nil {
		return "", issue.WrapWithContext(err, "write configuration", path)
	}

	abs, err := types.FilesystemPath(path).Abs()
	if err != nil {
		return path, nil
	}
	return abs.String(), nil
}
