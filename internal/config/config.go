// Package config loads language server settings from defaults, an optional
// YAML file and BLADE_LS_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

const (
	// DefaultFileName is read from the working directory when no file is given.
	DefaultFileName = ".blade-ls.yaml"
	envPrefix       = "BLADE_LS"
)

type Config struct {
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	// ManifestPath points at the JSON manifest describing the project's views
	// and components. Reference diagnostics are off while it is unset.
	ManifestPath        string        `yaml:"manifest_path" envconfig:"MANIFEST_PATH"`
	ManifestTTL         time.Duration `yaml:"manifest_ttl" envconfig:"MANIFEST_TTL"`
	SyntaxDiagnostics   bool          `yaml:"syntax_diagnostics" envconfig:"SYNTAX_DIAGNOSTICS"`
	SemanticDiagnostics bool          `yaml:"semantic_diagnostics" envconfig:"SEMANTIC_DIAGNOSTICS"`
	FileSuffixes        []string      `yaml:"file_suffixes" envconfig:"FILE_SUFFIXES"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:            "info",
		ManifestTTL:         30 * time.Second,
		SyntaxDiagnostics:   true,
		SemanticDiagnostics: true,
		FileSuffixes:        []string{".blade.php"},
	}
}

// Load builds the configuration. An explicitly named file must exist; the
// default file is optional.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var err error
	if _, lvlErr := parseLevel(c.LogLevel); lvlErr != nil {
		err = multierr.Append(err, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, lvlErr))
	}
	if c.ManifestTTL < 0 {
		err = multierr.Append(err, fmt.Errorf("manifest_ttl must not be negative, got %s", c.ManifestTTL))
	}
	if len(c.FileSuffixes) == 0 {
		err = multierr.Append(err, errors.New("file_suffixes must name at least one suffix"))
	}
	for _, s := range c.FileSuffixes {
		if !strings.HasPrefix(s, ".") {
			err = multierr.Append(err, fmt.Errorf("file suffix %q must start with a dot", s))
		}
	}
	return err
}

// Level returns the configured log level, falling back to info.
func (c Config) Level() zapcore.Level {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// IsTemplate reports whether filename has one of the configured suffixes.
func (c Config) IsTemplate(filename string) bool {
	for _, s := range c.FileSuffixes {
		if strings.HasSuffix(filename, s) {
			return true
		}
	}
	return false
}

func parseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	err := lvl.UnmarshalText([]byte(strings.ToLower(s)))
	return lvl, err
}
