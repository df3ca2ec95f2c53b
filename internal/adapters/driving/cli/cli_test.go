package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driving"
)

// mockIngestor implements driving.Ingestor for testing.
type mockIngestor struct {
	partitions []string
	ran        []string
	err        error
}

func (m *mockIngestor) Run(_ context.Context, partitions []string) (*driving.RunReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.ran = partitions
	return sampleReport(partitions), nil
}

func (m *mockIngestor) Partitions(context.Context) ([]string, error) {
	return m.partitions, nil
}

func (m *mockIngestor) Status() driving.IngestStatus {
	return driving.IngestStatus{}
}

type mockTransformer struct {
	ran        []string
	partitions []string
}

func (m *mockTransformer) Run(_ context.Context, partitions []string) (*driving.RunReport, error) {
	m.ran = partitions
	return sampleReport(partitions), nil
}

func (m *mockTransformer) Partitions(context.Context) ([]string, error) {
	return m.partitions, nil
}

type mockMerger struct {
	stats domain.MergeStats
	err   error
}

func (m *mockMerger) Merge(context.Context) (domain.MergeStats, error) {
	return m.stats, m.err
}

type mockHistory struct {
	runs []domain.RunSummary
}

func (m *mockHistory) RecordRun(_ context.Context, s domain.RunSummary) error {
	m.runs = append([]domain.RunSummary{s}, m.runs...)
	return nil
}

func (m *mockHistory) RecentRuns(_ context.Context, limit int) ([]domain.RunSummary, error) {
	if limit < len(m.runs) {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

func sampleReport(partitions []string) *driving.RunReport {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r := &driving.RunReport{RunID: "run-1", Started: start, Finished: start.Add(2 * time.Second)}
	for _, p := range partitions {
		r.Partitions = append(r.Partitions, driving.PartitionReport{Partition: p, Listed: 3, Fetched: 3, Extracted: 2, Unextracted: 1})
	}
	r.Merge = &domain.MergeStats{Staged: 2, Unique: 2, Inserted: 2}
	return r
}

type fixture struct {
	ingestor    *mockIngestor
	transformer *mockTransformer
	merger      *mockMerger
	history     *mockHistory
}

func setupServices(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ingestor:    &mockIngestor{partitions: []string{"1999", "2000"}},
		transformer: &mockTransformer{},
		merger:      &mockMerger{stats: domain.MergeStats{Staged: 5, Unique: 4, Inserted: 1, Updated: 2, Skipped: 1}},
		history:     &mockHistory{},
	}
	old := services
	SetServices(&Services{
		Ingestor:    f.ingestor,
		Transformer: f.transformer,
		Merger:      f.merger,
		History:     f.history,
	})
	t.Cleanup(func() { services = old })
	return f
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestIngestCmd_Years(t *testing.T) {
	f := setupServices(t)

	out, err := execute(t, "ingest", "2023", "2024")

	require.NoError(t, err)
	assert.Equal(t, []string{"2023", "2024"}, f.ingestor.ran)
	assert.Contains(t, out, "Ingesting 2 partition(s)...")
	assert.Contains(t, out, "2023: 3 listed, 2 extracted, 0 failed, 1 unextractable")
	assert.Contains(t, out, "Merged 2 staged rows (2 unique): 2 inserted, 0 updated, 0 skipped")
	require.Len(t, f.history.runs, 1)
	assert.Equal(t, domain.RunKindIngest, f.history.runs[0].Kind)
	assert.Equal(t, 4, f.history.runs[0].Records)
}

func TestIngestCmd_AllYears(t *testing.T) {
	f := setupServices(t)

	_, err := execute(t, "ingest")

	require.NoError(t, err)
	assert.Equal(t, []string{"1999", "2000"}, f.ingestor.ran)
}

func TestIngestCmd_InvalidYear(t *testing.T) {
	setupServices(t)

	_, err := execute(t, "ingest", "20x4")

	assert.ErrorContains(t, err, `invalid year "20x4"`)
}

func TestIngestCmd_ConnectivityFailure(t *testing.T) {
	f := setupServices(t)
	f.ingestor.err = domain.ErrConnectivity

	_, err := execute(t, "ingest", "2024")

	assert.ErrorIs(t, err, domain.ErrConnectivity)
	assert.Empty(t, f.history.runs)
}

func TestYearsCmd(t *testing.T) {
	setupServices(t)

	out, err := execute(t, "years")

	require.NoError(t, err)
	assert.Equal(t, "1999\n2000\n", out)
}

func TestTransformCmd(t *testing.T) {
	f := setupServices(t)

	out, err := execute(t, "transform", "2024")

	require.NoError(t, err)
	assert.Equal(t, []string{"2024"}, f.transformer.ran)
	assert.Contains(t, out, "Transforming 1 partition(s)...")
	require.Len(t, f.history.runs, 1)
	assert.Equal(t, domain.RunKindTransform, f.history.runs[0].Kind)
}

func TestTransformCmd_AllArchivedYears(t *testing.T) {
	f := setupServices(t)
	f.transformer.partitions = []string{"2023", "2024"}

	out, err := execute(t, "transform")

	require.NoError(t, err)
	assert.Equal(t, []string{"2023", "2024"}, f.transformer.ran)
	assert.Contains(t, out, "Transforming 2 partition(s)...")
}

func TestTransformCmd_EmptyArchive(t *testing.T) {
	f := setupServices(t)

	_, err := execute(t, "transform")

	assert.ErrorContains(t, err, "archive is empty")
	assert.Nil(t, f.transformer.ran)
}

func TestTransformCmd_NoArchive(t *testing.T) {
	setupServices(t)
	services.Transformer = nil

	_, err := execute(t, "transform", "2024")

	assert.ErrorContains(t, err, "raw archive")
}

func TestMergeCmd(t *testing.T) {
	f := setupServices(t)

	out, err := execute(t, "merge")

	require.NoError(t, err)
	assert.Contains(t, out, "Merged 5 staged rows (4 unique): 1 inserted, 2 updated, 1 skipped")
	require.Len(t, f.history.runs, 1)
	assert.Equal(t, domain.RunKindMerge, f.history.runs[0].Kind)
	require.NotNil(t, f.history.runs[0].Merge)
	assert.Equal(t, 2, f.history.runs[0].Merge.Updated)
}

func TestMergeCmd_Error(t *testing.T) {
	f := setupServices(t)
	f.merger.err = errors.New("lock timeout")

	_, err := execute(t, "merge")

	assert.ErrorContains(t, err, "lock timeout")
	require.Len(t, f.history.runs, 1)
	assert.Equal(t, "lock timeout", f.history.runs[0].MergeError)
}

func TestRunsCmd(t *testing.T) {
	f := setupServices(t)

	out, err := execute(t, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")

	_, err = execute(t, "ingest", "2024")
	require.NoError(t, err)

	out, err = execute(t, "runs", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "STARTED")
	assert.Contains(t, out, "ingest")
	assert.Contains(t, out, "2024")
	assert.Contains(t, out, "2+0")
	assert.Contains(t, out, f.history.runs[0].RunID)
}

func TestConfigInitCmd(t *testing.T) {
	oldServices, oldBootstrap := services, bootstrap
	services, bootstrap = nil, nil
	defer func() { services, bootstrap = oldServices, oldBootstrap }()

	path := filepath.Join(t.TempDir(), "config.toml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vulnrichment")

	_, err = execute(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")
}

func TestBootstrapIsUsedWhenNoServices(t *testing.T) {
	oldServices, oldBootstrap := services, bootstrap
	defer func() { services, bootstrap = oldServices, oldBootstrap }()
	services = nil

	ing := &mockIngestor{partitions: []string{"2024"}}
	closed := false
	var gotPath string
	SetBootstrap(func(_ context.Context, cfgPath string, _ bool) (*Services, io.Closer, error) {
		gotPath = cfgPath
		return &Services{Ingestor: ing}, closerFunc(func() error {
			closed = true
			return nil
		}), nil
	})

	out, err := execute(t, "years", "--config", "custom.toml")
	defer func() { cfgFile = "" }()

	require.NoError(t, err)
	assert.Equal(t, "2024\n", out)
	assert.Equal(t, "custom.toml", gotPath)
	assert.True(t, closed)
	assert.Nil(t, services)
}

func TestBootstrapError(t *testing.T) {
	oldServices, oldBootstrap := services, bootstrap
	defer func() { services, bootstrap = oldServices, oldBootstrap }()
	services = nil
	SetBootstrap(func(context.Context, string, bool) (*Services, io.Closer, error) {
		return nil, nil, errors.New("bad config")
	})

	_, err := execute(t, "years")

	assert.ErrorContains(t, err, "bad config")
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
