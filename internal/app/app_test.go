package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vulnsync/internal/adapters/driven/storage/bolt"
	"github.com/custodia-labs/vulnsync/internal/adapters/driven/storage/gcp"
	"github.com/custodia-labs/vulnsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/vulnsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/vulnsync/internal/config"
	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.Sink.SQLiteDir = t.TempDir()
	cfg.Sink.CSVDir = t.TempDir()
	return cfg
}

func TestBootstrap_SQLiteSink(t *testing.T) {
	a, err := Bootstrap(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	store, ok := a.Sink.(*sqlite.Store)
	require.True(t, ok)
	assert.Same(t, store, a.History)
	assert.Nil(t, a.Raw)
	assert.Nil(t, a.Transformer)
	assert.NotNil(t, a.Ingestor)
	assert.NotNil(t, a.Merger)
	assert.NotNil(t, a.Source)
}

func TestBootstrap_MemorySinkWithBoltArchive(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sink.Kind = config.SinkMemory
	cfg.Raw.Kind = config.RawBolt
	cfg.Raw.BoltPath = bolt.Path(t.TempDir())

	a, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	assert.IsType(t, &memory.RecordStore{}, a.Sink)
	assert.IsType(t, &bolt.RawStore{}, a.Raw)
	assert.IsType(t, &sqlite.Store{}, a.History)
	assert.NotNil(t, a.Transformer)

	// History lives in the sqlite dir even when the sink is elsewhere.
	require.NoError(t, a.History.RecordRun(context.Background(), domain.RunSummary{RunID: "r1", Kind: domain.RunKindIngest}))
	assert.FileExists(t, filepath.Join(cfg.Sink.SQLiteDir, sqlite.DatabaseFile))
}

func TestBootstrap_CSVSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sink.Kind = config.SinkCSV

	a, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	assert.Equal(t, "csv", a.Sink.Name())
}

func TestBootstrap_UnknownSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sink.Kind = "mongo"

	_, err := Bootstrap(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestBootstrap_ResolvesSecrets(t *testing.T) {
	var accessed []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessed = append(accessed, r.URL.Path)
		if !strings.HasSuffix(r.URL.Path, "/secrets/GH_TOKEN/versions/latest:access") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"payload": map[string]string{"data": base64.StdEncoding.EncodeToString([]byte("ghp_secret"))},
		})
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Sink.Kind = config.SinkMemory
	cfg.Secrets.Project = "proj"
	cfg.Secrets.GitHubToken = "GH_TOKEN"

	a, err := Bootstrap(context.Background(), cfg, WithGCPConfig(func(c *gcp.Config) {
		c.SecretManagerEndpoint = srv.URL + "/"
		c.HTTPClient = srv.Client()
	}))
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	assert.Equal(t, "ghp_secret", cfg.GitHub.Token)
	assert.Equal(t, []string{"/v1/projects/proj/secrets/GH_TOKEN/versions/latest:access"}, accessed)
}

func TestBootstrap_InvalidGitHubConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.GitHub.Owner = ""

	_, err := Bootstrap(context.Background(), cfg)
	assert.Error(t, err)
}

func TestBootstrap_MetricsServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sink.Kind = config.SinkMemory
	cfg.Metrics.Addr = "127.0.0.1:0"
	registry := prometheus.NewRegistry()

	a, err := Bootstrap(context.Background(), cfg, WithRegistry(registry))
	require.NoError(t, err)
	require.NotNil(t, a.metricsServer)
	assert.NoError(t, a.Close())
}

func TestExtractorConfig(t *testing.T) {
	cfg := config.New()
	cfg.Extract.VersionPreference = []string{"cvssV3_1"}
	ec := extractorConfig(cfg)
	assert.Equal(t, []domain.CVSSVersion{domain.CVSSV31}, ec.VersionPreference)
	assert.Equal(t, "CISA ADP Vulnrichment", ec.AssessmentTitle)
}

func TestGitHubConfig(t *testing.T) {
	cfg := config.New()
	cfg.GitHub.Token = "t"
	cfg.GitHub.RequestsPerSecond = 2
	gc := githubConfig(cfg)
	assert.Equal(t, "cisagov", gc.Owner)
	assert.Equal(t, "t", gc.Token)
	assert.Equal(t, 2.0, gc.RequestsPerSecond)
	assert.Equal(t, cfg.GitHub.ResetBuffer.Std(), gc.ResetBuffer)
}

func TestConfigureLogging(t *testing.T) {
	t.Cleanup(func() {
		logger.SetVerbose(false)
		logger.SetTimestamps(false)
	})

	tests := []struct {
		name    string
		level   string
		verbose bool
		want    logger.Level
	}{
		{"default", "warn", false, logger.LevelWarn},
		{"configured", "error", false, logger.LevelError},
		{"verbose wins", "error", true, logger.LevelDebug},
		{"unparsable", "loud", false, logger.LevelWarn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			cfg.Log.Level = tt.level
			cfg.Verbose = tt.verbose

			configureLogging(cfg)

			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}
