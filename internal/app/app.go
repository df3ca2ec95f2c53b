// Package app wires configuration to adapters and services.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/custodia-labs/vulnsync/internal/adapters/driven/storage/bolt"
	"github.com/custodia-labs/vulnsync/internal/adapters/driven/storage/csvfile"
	"github.com/custodia-labs/vulnsync/internal/adapters/driven/storage/gcp"
	"github.com/custodia-labs/vulnsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/vulnsync/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/vulnsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/vulnsync/internal/config"
	"github.com/custodia-labs/vulnsync/internal/connectors/github"
	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driven"
	"github.com/custodia-labs/vulnsync/internal/core/services"
	"github.com/custodia-labs/vulnsync/internal/logger"
	"github.com/custodia-labs/vulnsync/internal/metrics"
)

// Ensure the Secret Manager adapter satisfies the config lookup.
var _ config.SecretSource = (*gcp.SecretManager)(nil)

// App holds the wired components of one process.
type App struct {
	Config      *config.Config
	Source      *github.Client
	Sink        driven.RecordSink
	Raw         driven.RawStore
	History     driven.RunHistory
	Metrics     *metrics.Recorder
	Ingestor    *services.Pipeline
	Transformer *services.ArchiveTransformer
	Merger      *services.MergeCoordinator

	metricsServer *metrics.Server
	closers       []io.Closer
}

type options struct {
	registry *prometheus.Registry
	gcp      func(*gcp.Config)
}

// Option configures Bootstrap.
type Option func(*options)

// WithRegistry registers metrics on registry instead of a fresh one.
func WithRegistry(r *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithGCPConfig adjusts the Google Cloud settings before clients are built.
func WithGCPConfig(fn func(*gcp.Config)) Option {
	return func(o *options) {
		o.gcp = fn
	}
}

// Bootstrap builds every component cfg asks for. On error, anything
// already opened is closed.
func Bootstrap(ctx context.Context, cfg *config.Config, opts ...Option) (a *App, err error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	configureLogging(cfg)

	a = &App{
		Config:  cfg,
		Metrics: metrics.NewRecorder(metrics.WithPrometheusRegistry(o.registry)),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	gcpCfg := gcp.Config{
		Project:         cfg.GCP.Project,
		Dataset:         cfg.GCP.Dataset,
		Prefix:          cfg.GCP.Prefix,
		Location:        cfg.GCP.Location,
		CredentialsFile: cfg.GCP.CredentialsFile,
	}
	if o.gcp != nil {
		o.gcp(&gcpCfg)
	}

	if cfg.Secrets.Enabled() {
		sm, err := gcp.NewSecretManager(ctx, gcpCfg, cfg.Secrets.ProjectOr(cfg.GCP.Project))
		if err != nil {
			return a, fmt.Errorf("secret manager: %w", err)
		}
		config.ResolveSecrets(ctx, cfg, sm)
	}
	if gcpCfg.Bucket == "" {
		gcpCfg.Bucket = cfg.GCP.Bucket
	}

	a.Source, err = github.NewClient(ctx, githubConfig(cfg), github.WithThrottleHook(a.Metrics.Throttled))
	if err != nil {
		return a, fmt.Errorf("github client: %w", err)
	}

	if err = a.openSink(ctx, gcpCfg); err != nil {
		return a, err
	}
	if err = a.openRaw(ctx, gcpCfg); err != nil {
		return a, err
	}
	if err = a.openHistory(); err != nil {
		return a, err
	}

	extractor := services.NewExtractor(extractorConfig(cfg))
	a.Merger = services.NewMergeCoordinator(a.Sink)
	a.Ingestor = services.NewPipeline(a.Source, extractor, a.Sink, a.Raw, a.Merger, a.Metrics,
		services.PipelineConfig{Workers: cfg.Pipeline.Workers})
	if a.Raw != nil {
		a.Transformer = services.NewArchiveTransformer(a.Raw, extractor, a.Sink, a.Merger)
	}

	if cfg.Metrics.Addr != "" {
		a.metricsServer, err = metrics.Serve(cfg.Metrics.Addr, o.registry)
		if err != nil {
			return a, fmt.Errorf("metrics server: %w", err)
		}
	}
	return a, nil
}

// configureLogging applies log.level and log.timestamps; --verbose wins
// over the configured level.
func configureLogging(cfg *config.Config) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logger.LevelWarn
	}
	if cfg.Verbose {
		level = logger.LevelDebug
	}
	logger.SetLevel(level)
	logger.SetTimestamps(cfg.Log.Timestamps)
}

func githubConfig(cfg *config.Config) github.Config {
	gc := github.DefaultConfig()
	gc.Owner = cfg.GitHub.Owner
	gc.Repo = cfg.GitHub.Repo
	gc.Ref = cfg.GitHub.Ref
	gc.Token = cfg.GitHub.Token
	gc.BaseURL = cfg.GitHub.BaseURL
	gc.RequestsPerSecond = cfg.GitHub.RequestsPerSecond
	gc.ResetBuffer = cfg.GitHub.ResetBuffer.Std()
	if cfg.GitHub.Timeout > 0 {
		gc.Timeout = cfg.GitHub.Timeout.Std()
	}
	return gc
}

func extractorConfig(cfg *config.Config) services.ExtractorConfig {
	ec := services.ExtractorConfig{AssessmentTitle: cfg.Extract.AssessmentTitle}
	for _, v := range cfg.Extract.VersionPreference {
		ec.VersionPreference = append(ec.VersionPreference, domain.CVSSVersion(v))
	}
	return ec
}

func (a *App) openSink(ctx context.Context, gcpCfg gcp.Config) error {
	cfg := a.Config
	switch cfg.Sink.Kind {
	case config.SinkSQLite:
		store, err := sqlite.NewStore(cfg.Sink.SQLiteDir)
		if err != nil {
			return fmt.Errorf("sqlite sink: %w", err)
		}
		a.Sink = store
	case config.SinkPostgres:
		store, err := postgres.NewStore(ctx, postgres.Config{DSN: cfg.Sink.PostgresDSN, Schema: cfg.Sink.PostgresSchema})
		if err != nil {
			return fmt.Errorf("postgres sink: %w", err)
		}
		a.Sink = store
	case config.SinkBigQuery:
		sink, err := gcp.NewSink(ctx, gcpCfg)
		if err != nil {
			return fmt.Errorf("bigquery sink: %w", err)
		}
		a.Sink = sink
	case config.SinkCSV:
		sink, err := csvfile.NewSink(cfg.Sink.CSVDir)
		if err != nil {
			return fmt.Errorf("csv sink: %w", err)
		}
		a.Sink = sink
	case config.SinkMemory:
		a.Sink = memory.NewRecordStore()
	default:
		return fmt.Errorf("%w: unknown sink %q", config.ErrInvalidConfig, cfg.Sink.Kind)
	}
	a.closers = append(a.closers, a.Sink)
	logger.Debug("Sink: %s", a.Sink.Name())
	return nil
}

func (a *App) openRaw(ctx context.Context, gcpCfg gcp.Config) error {
	cfg := a.Config
	switch cfg.Raw.Kind {
	case config.RawNone, "":
		return nil
	case config.RawBolt:
		path := cfg.Raw.BoltPath
		if path == "" {
			dir, err := dataDir()
			if err != nil {
				return err
			}
			path = bolt.Path(dir)
		}
		store, err := bolt.NewRawStore(path)
		if err != nil {
			return fmt.Errorf("bolt archive: %w", err)
		}
		a.Raw = store
	case config.RawGCS:
		store, err := gcp.NewRawStore(ctx, gcpCfg)
		if err != nil {
			return fmt.Errorf("gcs archive: %w", err)
		}
		a.Raw = store
	default:
		return fmt.Errorf("%w: unknown raw archive %q", config.ErrInvalidConfig, cfg.Raw.Kind)
	}
	a.closers = append(a.closers, a.Raw)
	return nil
}

// openHistory reuses the SQLite sink when there is one; otherwise it opens
// a SQLite database in the data directory only for run history.
func (a *App) openHistory() error {
	if h, ok := a.Sink.(driven.RunHistory); ok {
		a.History = h
		return nil
	}
	store, err := sqlite.NewStore(a.Config.Sink.SQLiteDir)
	if err != nil {
		return fmt.Errorf("run history: %w", err)
	}
	a.History = store
	a.closers = append(a.closers, store)
	return nil
}

func dataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".vulnsync", "data"), nil
}

// Close releases everything Bootstrap opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	if a.metricsServer != nil {
		errs = append(errs, a.metricsServer.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
