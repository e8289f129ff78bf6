// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/stembuild/stembuild/internal/issue"
	"github.com/stembuild/stembuild/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "stembuild"
	// ConfigFileName is the name of the user config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// ProjectFileName is the project-local config file.
	ProjectFileName = AppName + "." + ConfigFileExt
	// DotEnvFile is loaded from the base directory when present.
	DotEnvFile = ".env"

	// EnvPrefix prefixes every environment override (STEMBUILD_BUILD_ROOT, ...).
	EnvPrefix = "STEMBUILD"
	// EnvSystemLibrary selects system-library mode when truthy.
	EnvSystemLibrary = "STEMBUILD_SYSTEM_LIBSTEMMER"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the stembuild user configuration directory
// ($XDG_CONFIG_HOME/stembuild on Linux, the platform equivalent elsewhere).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// loadWithOptions performs option-driven config loading without touching
// package-level state. The process environment is only written by the
// dotenv loader, which never overrides variables that are already set.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	baseDir := string(opts.BaseDir)
	if baseDir == "" {
		baseDir = "."
	}

	if err := loadDotEnv(baseDir, string(opts.EnvFile)); err != nil {
		return nil, err
	}

	v := newViper()

	path, err := resolveConfigFile(baseDir, opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				Wrap(err).
				BuildError()
		}
	}

	for key, val := range opts.Overrides {
		v.Set(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.SourcePath = path

	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(describeSource(path)).
			WithIssue(issue.ConfigurationInvalidId).
			WithSuggestion("Run 'stembuild config show' to see the effective values").
			WithSuggestion("Check STEMBUILD_* environment variables and the .env file").
			Wrap(err).
			BuildError()
	}

	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("build_root", d.BuildRoot)
	v.SetDefault("source_uri", d.SourceURI)
	v.SetDefault("checksum", d.Checksum)
	v.SetDefault("system_library", d.SystemLibrary)
	v.SetDefault("system_library_name", d.SystemLibraryName)
	v.SetDefault("manifest.path", d.Manifest.Path)
	v.SetDefault("manifest.core_dirs", d.Manifest.CoreDirs)
	v.SetDefault("manifest.extension", d.Manifest.Extension)
	v.SetDefault("manifest.strict", d.Manifest.Strict)
	v.SetDefault("binding.extension_name", d.Binding.ExtensionName)
	v.SetDefault("binding.sources", d.Binding.Sources)
	v.SetDefault("fetch.timeout", d.Fetch.Timeout)
	v.SetDefault("fetch.max_bytes", d.Fetch.MaxBytes)
	v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)
	v.SetDefault("extract.strip_components", d.Extract.StripComponents)
	v.SetDefault("extract.max_bytes", d.Extract.MaxBytes)
	v.SetDefault("mirror.endpoint", d.Mirror.Endpoint)
	v.SetDefault("mirror.access_key", d.Mirror.AccessKey)
	v.SetDefault("mirror.secret_key", d.Mirror.SecretKey)
	v.SetDefault("mirror.region", d.Mirror.Region)
	v.SetDefault("mirror.use_ssl", d.Mirror.UseSSL)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The toggle is also read from its documented variable name.
	_ = v.BindEnv("system_library", EnvSystemLibrary)

	return v
}

// resolveConfigFile picks the explicit file, then ./stembuild.cue, then the
// user config file. An empty result means defaults only.
func resolveConfigFile(baseDir string, opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		p := string(opts.ConfigFilePath)
		if !fileExists(p) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(p).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'stembuild config init' to generate one").
				Wrap(fmt.Errorf("config file not found: %s", p)).
				BuildError()
		}
		return p, nil
	}

	if local := filepath.Join(baseDir, ProjectFileName); fileExists(local) {
		return local, nil
	}

	cfgDir := string(opts.ConfigDirPath)
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			// No user config directory; fall back to defaults.
			return "", nil
		}
		cfgDir = dir
	}
	if user := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(user) {
		return user, nil
	}
	return "", nil
}

func loadDotEnv(baseDir, envFile string) error {
	if envFile == "" {
		envFile = filepath.Join(baseDir, DotEnvFile)
		if !fileExists(envFile) {
			return nil
		}
	}
	if err := godotenv.Load(envFile); err != nil {
		return issue.NewErrorContext().
			WithOperation("load environment file").
			WithResource(envFile).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Check that the file exists and uses KEY=value lines").
			Wrap(err).
			BuildError()
	}
	return nil
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into v,
// keeping defaults for omitted fields and letting the environment override it.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	configMap, err := cueutil.DecodeMap(configSchema, data, "#Config", path)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func describeSource(path string) string {
	if path == "" {
		return "defaults and environment"
	}
	return path
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg as a config file. The mirror secret key is never
// written.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// stembuild configuration\n")
	sb.WriteString("// Every field is optional; remove a line to fall back to its default.\n\n")

	fmt.Fprintf(&sb, "version:    %q\n", cfg.Version)
	fmt.Fprintf(&sb, "build_root: %q\n", cfg.BuildRoot)
	fmt.Fprintf(&sb, "source_uri: %q\n", cfg.SourceURI)
	if cfg.Checksum != "" {
		fmt.Fprintf(&sb, "checksum:   %q\n", cfg.Checksum)
	}
	if cfg.SystemLibrary != "" {
		fmt.Fprintf(&sb, "system_library: %q\n", cfg.SystemLibrary)
	}
	fmt.Fprintf(&sb, "system_library_name: %q\n", cfg.SystemLibraryName)

	sb.WriteString("\nmanifest: {\n")
	fmt.Fprintf(&sb, "\tpath:      %q\n", cfg.Manifest.Path)
	fmt.Fprintf(&sb, "\tcore_dirs: %s\n", cueList(cfg.Manifest.CoreDirs))
	fmt.Fprintf(&sb, "\textension: %q\n", cfg.Manifest.Extension)
	fmt.Fprintf(&sb, "\tstrict:    %v\n", cfg.Manifest.Strict)
	sb.WriteString("}\n")

	sb.WriteString("\nbinding: {\n")
	fmt.Fprintf(&sb, "\textension_name: %q\n", cfg.Binding.ExtensionName)
	fmt.Fprintf(&sb, "\tsources: %s\n", cueList(cfg.Binding.Sources))
	sb.WriteString("}\n")

	sb.WriteString("\nfetch: {\n")
	fmt.Fprintf(&sb, "\ttimeout:    %q\n", cfg.Fetch.Timeout.String())
	fmt.Fprintf(&sb, "\tmax_bytes:  %d\n", cfg.Fetch.MaxBytes)
	fmt.Fprintf(&sb, "\tuser_agent: %q\n", cfg.Fetch.UserAgent)
	sb.WriteString("}\n")

	sb.WriteString("\nextract: {\n")
	fmt.Fprintf(&sb, "\tstrip_components: %d\n", cfg.Extract.StripComponents)
	fmt.Fprintf(&sb, "\tmax_bytes:        %d\n", cfg.Extract.MaxBytes)
	sb.WriteString("}\n")

	sb.WriteString("\nmirror: {\n")
	if cfg.Mirror.Endpoint != "" {
		fmt.Fprintf(&sb, "\tendpoint:   %q\n", cfg.Mirror.Endpoint)
	}
	if cfg.Mirror.AccessKey != "" {
		fmt.Fprintf(&sb, "\taccess_key: %q\n", cfg.Mirror.AccessKey)
	}
	fmt.Fprintf(&sb, "\tregion:     %q\n", cfg.Mirror.Region)
	fmt.Fprintf(&sb, "\tuse_ssl:    %v\n", cfg.Mirror.UseSSL)
	sb.WriteString("}\n")

	return sb.String()
}

func cueList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
