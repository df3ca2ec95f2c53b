// Package config defines the vulnsync configuration and how it is loaded.
//
// Values are layered, lowest precedence first:
//  1. defaults (New)
//  2. an optional TOML or YAML file
//  3. environment variables prefixed VULNSYNC_, with "__" separating
//     sections (VULNSYNC_GITHUB__TOKEN sets github.token)
//  4. Google Secret Manager, for secrets named in the secrets section whose
//     value is still empty (resolved at bootstrap by ResolveSecrets)
package config

import (
	"time"
)

// Sink kinds.
const (
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
	SinkBigQuery = "bigquery"
	SinkCSV      = "csv"
	SinkMemory   = "memory"
)

// Raw archive kinds.
const (
	RawNone = "none"
	RawBolt = "bolt"
	RawGCS  = "gcs"
)

// Config contains process configuration.
type Config struct {
	// Verbose enables debug and info output, overriding log.level.
	Verbose bool `koanf:"verbose" toml:"verbose" yaml:"verbose"`

	Log      LogConfig      `koanf:"log" toml:"log" yaml:"log"`
	GitHub   GitHubConfig   `koanf:"github" toml:"github" yaml:"github"`
	Extract  ExtractConfig  `koanf:"extract" toml:"extract" yaml:"extract"`
	Pipeline PipelineConfig `koanf:"pipeline" toml:"pipeline" yaml:"pipeline"`
	Sink     SinkConfig     `koanf:"sink" toml:"sink" yaml:"sink"`
	Raw      RawConfig      `koanf:"raw" toml:"raw" yaml:"raw"`
	GCP      GCPConfig      `koanf:"gcp" toml:"gcp" yaml:"gcp"`
	Metrics  MetricsConfig  `koanf:"metrics" toml:"metrics" yaml:"metrics"`
	Secrets  SecretsConfig  `koanf:"secrets" toml:"secrets" yaml:"secrets"`
}

// GitHubConfig locates the upstream advisory repository.
type GitHubConfig struct {
	Owner   string `koanf:"owner" toml:"owner" yaml:"owner"`
	Repo    string `koanf:"repo" toml:"repo" yaml:"repo"`
	Ref     string `koanf:"ref" toml:"ref" yaml:"ref"`
	Token   string `koanf:"token" toml:"token,omitempty" yaml:"token,omitempty"`
	BaseURL string `koanf:"base_url" toml:"base_url,omitempty" yaml:"base_url,omitempty"`

	// RequestsPerSecond paces requests. Zero disables pacing.
	RequestsPerSecond float64 `koanf:"requests_per_second" toml:"requests_per_second" yaml:"requests_per_second"`

	// ResetBuffer is added to the rate-limit reset time before retrying.
	ResetBuffer Duration `koanf:"reset_buffer" toml:"reset_buffer" yaml:"reset_buffer"`

	Timeout Duration `koanf:"timeout" toml:"timeout" yaml:"timeout"`
}

// ExtractConfig tunes advisory extraction.
type ExtractConfig struct {
	// AssessmentTitle marks the enrichment container holding authoritative metrics.
	AssessmentTitle string `koanf:"assessment_title" toml:"assessment_title" yaml:"assessment_title"`

	// VersionPreference orders the CVSS blocks to read, most preferred first.
	VersionPreference []string `koanf:"version_preference" toml:"version_preference" yaml:"version_preference"`
}

// PipelineConfig tunes ingestion.
type PipelineConfig struct {
	Workers int `koanf:"workers" toml:"workers" yaml:"workers"`
}

// SinkConfig selects and configures the record sink.
type SinkConfig struct {
	Kind           string `koanf:"kind" toml:"kind" yaml:"kind"`
	SQLiteDir      string `koanf:"sqlite_dir" toml:"sqlite_dir,omitempty" yaml:"sqlite_dir,omitempty"`
	PostgresDSN    string `koanf:"postgres_dsn" toml:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`
	PostgresSchema string `koanf:"postgres_schema" toml:"postgres_schema,omitempty" yaml:"postgres_schema,omitempty"`
	CSVDir         string `koanf:"csv_dir" toml:"csv_dir" yaml:"csv_dir"`
}

// RawConfig selects the archive for raw documents.
type RawConfig struct {
	Kind     string `koanf:"kind" toml:"kind" yaml:"kind"`
	BoltPath string `koanf:"bolt_path" toml:"bolt_path,omitempty" yaml:"bolt_path,omitempty"`
}

// GCPConfig configures Cloud Storage and BigQuery.
type GCPConfig struct {
	Project         string `koanf:"project" toml:"project,omitempty" yaml:"project,omitempty"`
	Dataset         string `koanf:"dataset" toml:"dataset,omitempty" yaml:"dataset,omitempty"`
	Location        string `koanf:"location" toml:"location,omitempty" yaml:"location,omitempty"`
	Bucket          string `koanf:"bucket" toml:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix          string `koanf:"prefix" toml:"prefix,omitempty" yaml:"prefix,omitempty"`
	CredentialsFile string `koanf:"credentials_file" toml:"credentials_file,omitempty" yaml:"credentials_file,omitempty"`
}

// LogConfig controls diagnostic output on stderr.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `koanf:"level" toml:"level" yaml:"level"`

	// Timestamps prefixes each line with the UTC time.
	Timestamps bool `koanf:"timestamps" toml:"timestamps" yaml:"timestamps"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the endpoint.
	Addr string `koanf:"addr" toml:"addr" yaml:"addr"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Log: LogConfig{
			Level: "warn",
		},
		GitHub: GitHubConfig{
			Owner:       "cisagov",
			Repo:        "vulnrichment",
			Ref:         "develop",
			ResetBuffer: Duration(5 * time.Second),
			Timeout:     Duration(30 * time.Second),
		},
		Extract: ExtractConfig{
			AssessmentTitle:   "CISA ADP Vulnrichment",
			VersionPreference: []string{"cvssV4_0", "cvssV3_1", "cvssV3_0", "cvssV2_0"},
		},
		Pipeline: PipelineConfig{
			Workers: 8,
		},
		Sink: SinkConfig{
			Kind:   SinkSQLite,
			CSVDir: "dataset_local",
		},
		Raw: RawConfig{
			Kind: RawNone,
		},
	}
}
