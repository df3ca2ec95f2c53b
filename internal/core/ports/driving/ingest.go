package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
)

// Ingestor runs the list, fetch, extract and publish pipeline.
type Ingestor interface {
	// Run ingests the given partitions in order. An error is returned only
	// when the run could not start (failed connectivity check); partial
	// failure is reported through RunReport.
	Run(ctx context.Context, partitions []string) (*RunReport, error)

	// Partitions lists the partitions available upstream.
	Partitions(ctx context.Context) ([]string, error)

	// Status returns live progress of the current run.
	Status() IngestStatus
}

// Transformer re-derives records from archived raw documents.
type Transformer interface {
	Run(ctx context.Context, partitions []string) (*RunReport, error)

	// Partitions lists the partitions present in the raw archive.
	Partitions(ctx context.Context) ([]string, error)
}

// Merger reconciles staged batches into the persistent target.
type Merger interface {
	Merge(ctx context.Context) (domain.MergeStats, error)
}

// IngestStatus is a point-in-time snapshot of a running pipeline.
type IngestStatus struct {
	Running   bool
	Partition string
	Total     int
	Processed int
	Failed    int
}

// PartitionReport summarises one partition.
type PartitionReport struct {
	Partition   string
	Listed      int
	Fetched     int
	Extracted   int
	Failed      int
	Unextracted int
	ListError   error
	SinkError   error
}

// RunReport summarises one run.
type RunReport struct {
	RunID      string
	Started    time.Time
	Finished   time.Time
	Partitions []PartitionReport
	Merge      *domain.MergeStats
	MergeError error
}

// Records returns the total number of records handed to the sink.
func (r *RunReport) Records() int {
	n := 0
	for _, p := range r.Partitions {
		n += p.Extracted
	}
	return n
}

// Failures returns the total number of excluded items.
func (r *RunReport) Failures() int {
	n := 0
	for _, p := range r.Partitions {
		n += p.Failed + p.Unextracted
	}
	return n
}

// Summary condenses the report for run history.
func (r *RunReport) Summary(kind domain.RunKind) domain.RunSummary {
	s := domain.RunSummary{
		RunID:      r.RunID,
		Kind:       kind,
		Started:    r.Started,
		Finished:   r.Finished,
		Partitions: make([]string, 0, len(r.Partitions)),
		Records:    r.Records(),
		Failures:   r.Failures(),
	}
	for _, p := range r.Partitions {
		s.Partitions = append(s.Partitions, p.Partition)
	}
	if r.Merge != nil {
		m := *r.Merge
		s.Merge = &m
	}
	if r.MergeError != nil {
		s.MergeError = r.MergeError.Error()
	}
	return s
}
