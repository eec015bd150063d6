package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the tensile configuration file
// (~/.config/tensile/config.yaml). All fields are pointers so we can
// distinguish "not set" from zero values.
type Config struct {
	Backend       *string `yaml:"backend"`
	OutputDir     *string `yaml:"output_dir"`
	OptimizeAlpha *bool   `yaml:"optimize_alpha"`
	OptimizeBeta  *bool   `yaml:"optimize_beta"`
	Workers       *int64  `yaml:"workers"`

	ServerAddress *string `yaml:"server_address"`

	LogLevel  *string `yaml:"log_level"`
	LogFormat *string `yaml:"log_format"`
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tensile", "config.yaml")
}

// LoadConfig reads the config file at path. A missing file yields a zero
// Config; a file that does not parse is an error.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyLoggingConfig applies config file defaults to the root logging flags
// when the corresponding CLI flag was not explicitly set.
func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != nil && !c.IsSet("log-level") {
		logLevel = *cfg.LogLevel
	}
	if cfg.LogFormat != nil && !c.IsSet("log-format") {
		logFormat = *cfg.LogFormat
	}
}

// applyTraceConfig applies config file defaults to the trace flags.
func applyTraceConfig(c *cli.Command, cfg Config) {
	if cfg.OptimizeAlpha != nil && !c.IsSet("optimize-alpha") {
		optimizeAlpha = *cfg.OptimizeAlpha
	}
	if cfg.OptimizeBeta != nil && !c.IsSet("optimize-beta") {
		optimizeBeta = *cfg.OptimizeBeta
	}
	if cfg.Workers != nil && !c.IsSet("workers") {
		workers = *cfg.Workers
	}
}

// applyGenerateConfig applies config file defaults to generate flags.
func applyGenerateConfig(c *cli.Command, cfg Config) {
	if cfg.Backend != nil && !c.IsSet("backend") {
		backendName = *cfg.Backend
	}
	if cfg.OutputDir != nil && !c.IsSet("out") {
		outputDir = *cfg.OutputDir
	}
}

// applyServeConfig applies config file defaults to serve flags.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	if cfg.Backend != nil && !c.IsSet("backend") {
		backendName = *cfg.Backend
	}
	if cfg.ServerAddress != nil && !c.IsSet("addr") {
		*addr = *cfg.ServerAddress
	}
}
