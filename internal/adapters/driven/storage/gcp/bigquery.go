package gcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	bigquery "google.golang.org/api/bigquery/v2"
	"k8s.io/utils/clock"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driven"
	"github.com/custodia-labs/vulnsync/internal/logger"
)

// Ensure Sink implements the interfaces.
var (
	_ driven.RecordSink = (*Sink)(nil)
	_ driven.Reconciler = (*Sink)(nil)
)

const (
	// Table names inside the dataset.
	StagingTable = "staging"
	RecordsTable = "records"

	// DefaultLoadChunk bounds the rows per load job.
	DefaultLoadChunk = 5000

	jobPollInterval = 2 * time.Second
	queryTimeout    = 60 * time.Second
)

// Sink loads batches into a BigQuery staging table and merges them into the
// records table.
type Sink struct {
	svc      *bigquery.Service
	project  string
	dataset  string
	location string
	chunk    int
	clock    clock.Clock
	limiter  *RateLimiter
	seq      atomic.Int64
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithClock sets the clock used between job polls.
func WithClock(clk clock.Clock) SinkOption {
	return func(s *Sink) {
		s.clock = clk
	}
}

// WithLoadChunk sets the number of rows per load job.
func WithLoadChunk(n int) SinkOption {
	return func(s *Sink) {
		if n > 0 {
			s.chunk = n
		}
	}
}

// NewSink creates the sink and ensures the dataset and both tables exist.
func NewSink(ctx context.Context, cfg Config, opts ...SinkOption) (*Sink, error) {
	if cfg.Project == "" || cfg.Dataset == "" {
		return nil, fmt.Errorf("%w: gcp project and dataset are required", domain.ErrInvalidInput)
	}
	svc, err := NewBigQueryService(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Sink{
		svc:      svc,
		project:  cfg.Project,
		dataset:  cfg.Dataset,
		location: cfg.Location,
		chunk:    DefaultLoadChunk,
		clock:    clock.RealClock{},
		limiter:  NewRateLimiter(ServiceBigQuery),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.seq.Store(s.clock.Now().UnixNano())

	if err := s.ensureDataset(ctx); err != nil {
		return nil, err
	}
	if err := s.ensureTable(ctx, StagingTable, stagingSchema()); err != nil {
		return nil, err
	}
	if err := s.ensureTable(ctx, RecordsTable, recordSchema()); err != nil {
		return nil, err
	}
	return s, nil
}

// Name identifies the sink.
func (s *Sink) Name() string { return "bigquery" }

// Close is a no-op.
func (s *Sink) Close() error { return nil }

func (s *Sink) tableRef(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", s.project, s.dataset, table)
}

// recordSchema describes the records table in Columns order.
func recordSchema() *bigquery.TableSchema {
	fields := lo.Map(domain.Columns, func(c string, _ int) *bigquery.TableFieldSchema {
		f := &bigquery.TableFieldSchema{Name: c, Type: "STRING", Mode: "NULLABLE"}
		switch c {
		case "id":
			f.Mode = "REQUIRED"
		case "known_exploited":
			f.Type = "BOOLEAN"
		case "impacted_products", "vulnerable_versions":
			f.Mode = "REPEATED"
		}
		return f
	})
	return &bigquery.TableSchema{Fields: fields}
}

// stagingSchema adds load bookkeeping to the record schema.
func stagingSchema() *bigquery.TableSchema {
	schema := recordSchema()
	schema.Fields = append(schema.Fields,
		&bigquery.TableFieldSchema{Name: "partition_key", Type: "STRING"},
		&bigquery.TableFieldSchema{Name: "run_id", Type: "STRING"},
		&bigquery.TableFieldSchema{Name: "staged_seq", Type: "INTEGER"},
	)
	return schema
}

func (s *Sink) ensureDataset(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	_, err := s.svc.Datasets.Get(s.project, s.dataset).Context(ctx).Do()
	if err == nil {
		return nil
	}
	if !IsNotFound(err) {
		return fmt.Errorf("get dataset %s: %w", s.dataset, WrapError(err))
	}

	logger.Info("Creating BigQuery dataset %s", s.dataset)
	_, err = s.svc.Datasets.Insert(s.project, &bigquery.Dataset{
		DatasetReference: &bigquery.DatasetReference{ProjectId: s.project, DatasetId: s.dataset},
		Location:         s.location,
	}).Context(ctx).Do()
	if err != nil && !IsConflict(err) {
		return fmt.Errorf("create dataset %s: %w", s.dataset, WrapError(err))
	}
	return nil
}

func (s *Sink) ensureTable(ctx context.Context, table string, schema *bigquery.TableSchema) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	_, err := s.svc.Tables.Get(s.project, s.dataset, table).Context(ctx).Do()
	if err == nil {
		return nil
	}
	if !IsNotFound(err) {
		return fmt.Errorf("get table %s: %w", table, WrapError(err))
	}

	logger.Info("Creating BigQuery table %s.%s", s.dataset, table)
	_, err = s.svc.Tables.Insert(s.project, s.dataset, &bigquery.Table{
		TableReference: &bigquery.TableReference{ProjectId: s.project, DatasetId: s.dataset, TableId: table},
		Schema:         schema,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create table %s: %w", table, WrapError(err))
	}
	return nil
}

// stagedRow is one newline-delimited JSON line of a load job.
type stagedRow struct {
	domain.Record
	PartitionKey string `json:"partition_key"`
	RunID        string `json:"run_id"`
	StagedSeq    int64  `json:"staged_seq"`
}

// WriteBatch loads the batch into staging, one load job per chunk.
func (s *Sink) WriteBatch(ctx context.Context, batch domain.Batch) error {
	for _, chunk := range lo.Chunk(batch.Records, s.chunk) {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		for i := range chunk {
			row := stagedRow{
				Record:       chunk[i],
				PartitionKey: batch.Partition,
				RunID:        batch.RunID,
				StagedSeq:    s.seq.Add(1),
			}
			if err := enc.Encode(row); err != nil {
				return fmt.Errorf("encode %s: %w", chunk[i].ID, err)
			}
		}
		if err := s.load(ctx, &buf); err != nil {
			return fmt.Errorf("load batch %s: %w", batch.Partition, err)
		}
	}
	return nil
}

func (s *Sink) load(ctx context.Context, data *bytes.Buffer) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	job := &bigquery.Job{
		Configuration: &bigquery.JobConfiguration{
			Load: &bigquery.JobConfigurationLoad{
				DestinationTable: &bigquery.TableReference{
					ProjectId: s.project, DatasetId: s.dataset, TableId: StagingTable,
				},
				SourceFormat:     "NEWLINE_DELIMITED_JSON",
				WriteDisposition: "WRITE_APPEND",
				Schema:           stagingSchema(),
			},
		},
	}
	if s.location != "" {
		job.JobReference = &bigquery.JobReference{ProjectId: s.project, Location: s.location}
	}

	inserted, err := s.svc.Jobs.Insert(s.project, job).Media(data).Context(ctx).Do()
	if err != nil {
		s.limiter.observe(err)
		return fmt.Errorf("insert load job: %w", WrapError(err))
	}
	return s.waitJob(ctx, inserted)
}

// waitJob polls until the job is done and surfaces its error result.
func (s *Sink) waitJob(ctx context.Context, job *bigquery.Job) error {
	for {
		if job.Status != nil && job.Status.State == "DONE" {
			if job.Status.ErrorResult != nil {
				return fmt.Errorf("%w: %s", ErrJobFailed, job.Status.ErrorResult.Message)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(jobPollInterval):
		}

		ref := job.JobReference
		var err error
		job, err = s.svc.Jobs.Get(s.project, ref.JobId).Location(ref.Location).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("get job %s: %w", ref.JobId, WrapError(err))
		}
	}
}

// query runs a standard SQL statement and waits for it to complete.
func (s *Sink) query(ctx context.Context, sql string) (*bigquery.QueryResponse, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := s.svc.Jobs.Query(s.project, &bigquery.QueryRequest{
		Query:        sql,
		UseLegacySql: lo.ToPtr(false),
		TimeoutMs:    queryTimeout.Milliseconds(),
		Location:     s.location,
	}).Context(ctx).Do()
	if err != nil {
		s.limiter.observe(err)
		return nil, WrapError(err)
	}

	for !resp.JobComplete {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.clock.After(jobPollInterval):
		}

		ref := resp.JobReference
		results, err := s.svc.Jobs.GetQueryResults(s.project, ref.JobId).
			Location(ref.Location).TimeoutMs(queryTimeout.Milliseconds()).Context(ctx).Do()
		if err != nil {
			return nil, WrapError(err)
		}
		resp.JobComplete = results.JobComplete
		resp.Rows = results.Rows
		resp.Errors = results.Errors

		if resp.JobComplete {
			job, err := s.svc.Jobs.Get(s.project, ref.JobId).Location(ref.Location).Context(ctx).Do()
			if err != nil {
				return nil, WrapError(err)
			}
			if job.Statistics != nil && job.Statistics.Query != nil {
				resp.DmlStats = job.Statistics.Query.DmlStats
			}
		}
	}
	return resp, nil
}

// Reconcile merges staging into records, then truncates staging.
func (s *Sink) Reconcile(ctx context.Context) (domain.MergeStats, error) {
	var stats domain.MergeStats

	counts, err := s.query(ctx, fmt.Sprintf(
		"SELECT COUNT(*), COUNT(DISTINCT id) FROM %s", s.tableRef(StagingTable)))
	if err != nil {
		return stats, fmt.Errorf("count staging: %w", err)
	}
	if len(counts.Rows) > 0 && len(counts.Rows[0].F) >= 2 {
		stats.Staged = cellInt(counts.Rows[0].F[0])
		stats.Unique = cellInt(counts.Rows[0].F[1])
	}
	if stats.Staged == 0 {
		return stats, nil
	}

	merged, err := s.query(ctx, s.mergeSQL())
	if err != nil {
		return domain.MergeStats{}, fmt.Errorf("merge: %w", err)
	}
	if merged.DmlStats != nil {
		stats.Inserted = int(merged.DmlStats.InsertedRowCount)
		stats.Updated = int(merged.DmlStats.UpdatedRowCount)
	}
	stats.Skipped = stats.Unique - stats.Inserted - stats.Updated

	if _, err := s.query(ctx, "TRUNCATE TABLE "+s.tableRef(StagingTable)); err != nil {
		return domain.MergeStats{}, fmt.Errorf("truncate staging: %w", err)
	}
	return stats, nil
}

// mergeSQL keeps the most recent staged row per id and upserts it when it is
// not older than the stored row.
func (s *Sink) mergeSQL() string {
	cols := strings.Join(domain.Columns, ", ")
	sets := strings.Join(lo.Map(domain.Columns[1:], func(c string, _ int) string {
		return c + " = S." + c
	}), ", ")
	values := strings.Join(lo.Map(domain.Columns, func(c string, _ int) string {
		return "S." + c
	}), ", ")

	return fmt.Sprintf(`MERGE %[1]s T
USING (
  SELECT %[3]s FROM (
    SELECT %[3]s, ROW_NUMBER() OVER (
      PARTITION BY id ORDER BY updated_date DESC, published_date DESC, staged_seq ASC
    ) AS rn
    FROM %[2]s
  ) WHERE rn = 1
) S
ON T.id = S.id
WHEN MATCHED AND (S.updated_date > T.updated_date
  OR (S.updated_date = T.updated_date AND S.published_date >= T.published_date)) THEN
  UPDATE SET %[4]s
WHEN NOT MATCHED THEN
  INSERT (%[3]s) VALUES (%[5]s)`,
		s.tableRef(RecordsTable), s.tableRef(StagingTable), cols, sets, values)
}

func cellInt(c *bigquery.TableCell) int {
	if c == nil || c.V == nil {
		return 0
	}
	n, err := strconv.Atoi(fmt.Sprint(c.V))
	if err != nil {
		return 0
	}
	return n
}
