// Package config loads h5cat settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Built-in limits.
const (
	DefaultMaxDatasets = 128
	DefaultMaxRank     = 16
	DefaultMaxDepth    = 20
	DefaultPreview     = 10
	DefaultLogLevel    = "info"
)

// Environment variables consulted by Load.
const (
	EnvLogLevel    = "H5CAT_LOG_LEVEL"
	EnvMaxDatasets = "H5CAT_MAX_DATASETS"
	EnvMaxRank     = "H5CAT_MAX_RANK"
	EnvS3Endpoint  = "H5CAT_S3_ENDPOINT"
	EnvS3Region    = "H5CAT_S3_REGION"
	EnvS3AccessKey = "H5CAT_S3_ACCESS_KEY"
	EnvS3SecretKey = "H5CAT_S3_SECRET_KEY"
)

// Limits bounds catalog and extraction work.
type Limits struct {
	MaxDatasets int `yaml:"max_datasets"`
	MaxRank     int `yaml:"max_rank"`
	MaxDepth    int `yaml:"max_depth"`
}

// OutputConfig controls what the command-line front end prints.
type OutputConfig struct {
	Preview int `yaml:"preview"`
}

// S3Config holds connection details for s3:// container sources. Endpoint
// and PathStyle let it target S3-compatible stores such as Ceph.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

// Config is the root configuration structure.
type Config struct {
	LogLevel string       `yaml:"log_level"`
	Limits   Limits       `yaml:"limits"`
	Output   OutputConfig `yaml:"output"`
	S3       S3Config     `yaml:"s3"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Limits: Limits{
			MaxDatasets: DefaultMaxDatasets,
			MaxRank:     DefaultMaxRank,
			MaxDepth:    DefaultMaxDepth,
		},
		Output: OutputConfig{Preview: DefaultPreview},
	}
}

// Load reads a config from path. An empty path or a missing file yields the
// defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	for name, dst := range map[string]*int{
		EnvMaxDatasets: &cfg.Limits.MaxDatasets,
		EnvMaxRank:     &cfg.Limits.MaxRank,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s: invalid positive integer %q", name, v)
		}
		*dst = n
	}
	for name, dst := range map[string]*string{
		EnvS3Endpoint:  &cfg.S3.Endpoint,
		EnvS3Region:    &cfg.S3.Region,
		EnvS3AccessKey: &cfg.S3.AccessKey,
		EnvS3SecretKey: &cfg.S3.SecretKey,
	} {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	return nil
}

func applyConfigDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.Limits.MaxDatasets <= 0 {
		cfg.Limits.MaxDatasets = DefaultMaxDatasets
	}
	if cfg.Limits.MaxRank <= 0 {
		cfg.Limits.MaxRank = DefaultMaxRank
	}
	if cfg.Limits.MaxDepth <= 0 {
		cfg.Limits.MaxDepth = DefaultMaxDepth
	}
	if cfg.Output.Preview < 0 {
		cfg.Output.Preview = DefaultPreview
	}
	if cfg.S3.Region == "" && cfg.S3.Endpoint != "" {
		cfg.S3.Region = "us-east-1"
	}
}
