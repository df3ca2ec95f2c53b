package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/vulnsync/internal/logger"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VULNSYNC_"

// Load builds a Config by layering defaults, the optional file at path, and
// environment variables. GITHUB_TOKEN is honoured when no token is set.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// VULNSYNC_PIPELINE__WORKERS -> pipeline.workers
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOMLParser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q", ErrLoadConfig, filepath.Ext(path))
	}
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
		return fmt.Errorf("%w: github.owner and github.repo must not be empty", ErrInvalidConfig)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("%w: pipeline.workers must not be negative", ErrInvalidConfig)
	}

	sinks := []string{SinkSQLite, SinkPostgres, SinkBigQuery, SinkCSV, SinkMemory}
	if !slices.Contains(sinks, c.Sink.Kind) {
		return fmt.Errorf("%w: sink.kind %q is not one of %s", ErrInvalidConfig, c.Sink.Kind, strings.Join(sinks, ", "))
	}
	raws := []string{RawNone, RawBolt, RawGCS}
	if !slices.Contains(raws, c.Raw.Kind) {
		return fmt.Errorf("%w: raw.kind %q is not one of %s", ErrInvalidConfig, c.Raw.Kind, strings.Join(raws, ", "))
	}

	switch {
	case c.Secrets.Enabled() && c.Secrets.ProjectOr(c.GCP.Project) == "":
		return fmt.Errorf("%w: secrets.project or gcp.project is required to read secrets", ErrInvalidConfig)
	case c.Sink.Kind == SinkPostgres && c.Sink.PostgresDSN == "" && c.Secrets.PostgresDSN == "":
		return fmt.Errorf("%w: sink.postgres_dsn is required for the postgres sink", ErrInvalidConfig)
	case c.Sink.Kind == SinkBigQuery && (c.GCP.Project == "" || c.GCP.Dataset == ""):
		return fmt.Errorf("%w: gcp.project and gcp.dataset are required for the bigquery sink", ErrInvalidConfig)
	case c.Raw.Kind == RawGCS && c.GCP.Bucket == "" && c.Secrets.GCPBucket == "":
		return fmt.Errorf("%w: gcp.bucket is required for the gcs archive", ErrInvalidConfig)
	}
	return nil
}

// Write saves cfg as TOML at path with restricted permissions. Secrets are
// written as configured, so callers usually clear them first.
func Write(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// DefaultPath returns ~/.vulnsync/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".vulnsync", "config.toml"), nil
}
