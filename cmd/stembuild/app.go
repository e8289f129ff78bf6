// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/stembuild/stembuild/internal/config"
	"github.com/stembuild/stembuild/internal/source"
	"github.com/stembuild/stembuild/pkg/types"
)

const defaultIssueStyle = "dark"

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every Cobra handler receives an App and builds
	// its acquirer, composer and logger through it.
	App struct {
		Config ConfigProvider
		// Fetcher replaces the scheme-dispatching fetcher built from
		// configuration when set.
		Fetcher    source.Fetcher
		stdout     io.Writer
		stderr     io.Writer
		baseDir    types.FilesystemPath
		configDir  types.FilesystemPath
		issueStyle string
	}

	// Dependencies defines the injection points for building an App. Nil or
	// empty fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config  ConfigProvider
		Fetcher source.Fetcher
		Stdout  io.Writer
		Stderr  io.Writer
		// BaseDir is searched for stembuild.cue and .env.
		BaseDir types.FilesystemPath
		// ConfigDir replaces the user configuration directory.
		ConfigDir types.FilesystemPath
		// IssueStyle is the glamour style used for issue help text.
		IssueStyle string
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// globalFlags holds the persistent flags shared by every subcommand.
	globalFlags struct {
		verbose    bool
		configPath string
		envFile    string
		buildRoot  string
		version    string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.IssueStyle == "" {
		deps.IssueStyle = defaultIssueStyle
	}

	return &App{
		Config:     deps.Config,
		Fetcher:    deps.Fetcher,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
		baseDir:    deps.BaseDir,
		configDir:  deps.ConfigDir,
		issueStyle: deps.IssueStyle,
	}
}

// loadConfig loads configuration with the global flags applied as
// overrides. extra overrides win over the global flags.
func (a *App) loadConfig(ctx context.Context, g *globalFlags, extra map[string]any) (*config.Config, error) {
	overrides := make(map[string]any, len(extra)+2)
	if g.buildRoot != "" {
		overrides["build_root"] = g.buildRoot
	}
	if g.version != "" {
		overrides["version"] = g.version
	}
	for k, v := range extra {
		overrides[k] = v
	}

	return a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: types.FilesystemPath(g.configPath),
		ConfigDirPath:  a.configDir,
		BaseDir:        a.baseDir,
		EnvFile:        types.FilesystemPath(g.envFile),
		Overrides:      overrides,
	})
}

// newLogger returns the structured logger used by the source and build
// packages. Progress goes to stderr so stdout stays machine-readable.
func (a *App) newLogger(verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{
		Prefix: config.AppName,
		Level:  level,
	})
}

// newFetcher dispatches http(s) sources to the HTTP fetcher and, when a
// mirror endpoint is configured, s3:// sources to the S3 fetcher.
func (a *App) newFetcher(cfg *config.Config) (source.Fetcher, error) {
	if a.Fetcher != nil {
		return a.Fetcher, nil
	}

	httpFetcher := source.NewHTTPFetcher(
		source.WithUserAgent(cfg.Fetch.UserAgent+"/"+Version),
		source.WithMaxBytes(cfg.Fetch.MaxBytes),
		source.WithTimeout(cfg.Fetch.Timeout),
	)
	fetchers := source.MultiFetcher{
		"http":  httpFetcher,
		"https": httpFetcher,
	}

	if cfg.Mirror.Endpoint != "" {
		s3Fetcher, err := source.NewS3Fetcher(cfg.S3Config())
		if err != nil {
			return nil, err
		}
		fetchers["s3"] = s3Fetcher
	}

	return fetchers, nil
}

// newAcquirer builds the Acquirer for cfg, logging state transitions at
// debug level.
func (a *App) newAcquirer(cfg *config.Config, logger *log.Logger) (*source.Acquirer, error) {
	fetcher, err := a.newFetcher(cfg)
	if err != nil {
		return nil, err
	}

	return source.NewAcquirer(
		source.WithFetcher(fetcher),
		source.WithLogger(logger),
		source.WithStripComponents(cfg.Extract.StripComponents),
		source.WithMaxExtractBytes(cfg.Extract.MaxBytes),
		source.WithStateObserver(func(s source.State) {
			logger.Debug("source state", "state", s)
		}),
	), nil
}
