package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driven"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driving"
	"github.com/custodia-labs/vulnsync/internal/logger"
)

// Ensure ArchiveTransformer implements the interface.
var _ driving.Transformer = (*ArchiveTransformer)(nil)

// ArchiveTransformer re-derives records from raw documents archived by a
// previous ingest, without touching the network.
type ArchiveTransformer struct {
	raw       driven.RawStore
	extractor *Extractor
	sink      driven.RecordSink
	merger    driving.Merger
}

// NewArchiveTransformer creates a transformer. The merger is optional.
func NewArchiveTransformer(
	raw driven.RawStore,
	extractor *Extractor,
	sink driven.RecordSink,
	merger driving.Merger,
) *ArchiveTransformer {
	return &ArchiveTransformer{raw: raw, extractor: extractor, sink: sink, merger: merger}
}

// Run transforms each partition in order and reconciles the sink at the end.
func (t *ArchiveTransformer) Run(ctx context.Context, partitions []string) (*driving.RunReport, error) {
	if t.raw == nil {
		return nil, fmt.Errorf("transform: raw store not configured")
	}

	report := &driving.RunReport{
		RunID:   uuid.New().String(),
		Started: time.Now(),
	}

	for _, partition := range partitions {
		report.Partitions = append(report.Partitions, t.runPartition(ctx, report.RunID, partition))
	}

	if t.merger != nil {
		stats, err := t.merger.Merge(ctx)
		if err != nil {
			logger.Error("merge: %v", err)
			report.MergeError = err
		} else {
			report.Merge = &stats
		}
	}

	report.Finished = time.Now()
	return report, nil
}

// Partitions lists the archived partitions.
func (t *ArchiveTransformer) Partitions(ctx context.Context) ([]string, error) {
	if t.raw == nil {
		return nil, fmt.Errorf("transform: raw store not configured")
	}
	partitions, err := t.raw.Partitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list archived partitions: %w", err)
	}
	return partitions, nil
}

func (t *ArchiveTransformer) runPartition(ctx context.Context, runID, partition string) driving.PartitionReport {
	pr := driving.PartitionReport{Partition: partition}

	names, err := t.raw.List(ctx, partition)
	if err != nil {
		logger.Warn("list archived %s: %v", partition, err)
		pr.ListError = err
	}
	pr.Listed = len(names)

	records := make([]domain.Record, 0, len(names))
	for _, name := range names {
		data, err := t.raw.Get(ctx, partition, name)
		if err != nil {
			logger.Warn("read archived %s/%s: %v", partition, name, err)
			pr.Failed++
			continue
		}
		pr.Fetched++

		rec, err := t.extractor.ExtractDocument(data)
		if err != nil {
			logger.Warn("extract archived %s/%s: %v", partition, name, err)
			if errors.Is(err, domain.ErrUnextractable) {
				pr.Unextracted++
			} else {
				pr.Failed++
			}
			continue
		}
		records = append(records, rec)
	}
	pr.Extracted = len(records)

	batch := domain.Batch{Partition: partition, RunID: runID, Records: records}
	if err := t.sink.WriteBatch(ctx, batch); err != nil {
		logger.Error("write batch %s to %s: %v", partition, t.sink.Name(), err)
		pr.SinkError = err
	}

	logger.Info("Transformed %s: %d/%d records", partition, pr.Extracted, pr.Listed)
	return pr
}
