package config

import (
	"context"

	"github.com/custodia-labs/vulnsync/internal/logger"
)

// SecretSource reads the latest version of a named secret.
type SecretSource interface {
	AccessSecret(ctx context.Context, id string) (string, error)
}

// SecretsConfig names the Secret Manager secrets consulted for values the
// file and environment left empty.
type SecretsConfig struct {
	// Project owning the secrets. Defaults to gcp.project.
	Project string `koanf:"project" toml:"project,omitempty" yaml:"project,omitempty"`

	GitHubToken string `koanf:"github_token" toml:"github_token,omitempty" yaml:"github_token,omitempty"`
	PostgresDSN string `koanf:"postgres_dsn" toml:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`
	GCPBucket   string `koanf:"gcp_bucket" toml:"gcp_bucket,omitempty" yaml:"gcp_bucket,omitempty"`
}

// Enabled reports whether any secret is configured.
func (s SecretsConfig) Enabled() bool {
	return s.GitHubToken != "" || s.PostgresDSN != "" || s.GCPBucket != ""
}

// ProjectOr returns the secrets project, falling back to def.
func (s SecretsConfig) ProjectOr(def string) string {
	if s.Project != "" {
		return s.Project
	}
	return def
}

// ResolveSecrets fills empty fields from src. Values already set by the file
// or environment are kept. A failed lookup is logged and leaves the field
// empty, so the component needing it reports the missing value.
func ResolveSecrets(ctx context.Context, cfg *Config, src SecretSource) {
	targets := []struct {
		id  string
		dst *string
	}{
		{cfg.Secrets.GitHubToken, &cfg.GitHub.Token},
		{cfg.Secrets.PostgresDSN, &cfg.Sink.PostgresDSN},
		{cfg.Secrets.GCPBucket, &cfg.GCP.Bucket},
	}

	for _, t := range targets {
		if t.id == "" || *t.dst != "" {
			continue
		}
		value, err := src.AccessSecret(ctx, t.id)
		if err != nil {
			logger.Warn("secret %s: %v", t.id, err)
			continue
		}
		logger.Debug("Resolved %s from Secret Manager", t.id)
		*t.dst = value
	}
}
