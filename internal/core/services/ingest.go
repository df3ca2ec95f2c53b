package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driven"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driving"
	"github.com/custodia-labs/vulnsync/internal/logger"
)

// Ensure Pipeline implements the interface.
var _ driving.Ingestor = (*Pipeline)(nil)

// DefaultWorkers is the worker pool size used when none is configured.
const DefaultWorkers = 8

// Failure stages reported to metrics.
const (
	stageFetch   = "fetch"
	stageDecode  = "decode"
	stageExtract = "extract"
)

// PipelineConfig tunes the ingestion pipeline.
type PipelineConfig struct {
	// Workers bounds the number of concurrent fetch-and-extract units.
	Workers int
}

// Pipeline lists, fetches, extracts and publishes advisories one partition
// at a time.
type Pipeline struct {
	source    driven.AdvisorySource
	extractor *Extractor
	sink      driven.RecordSink
	raw       driven.RawStore
	merger    driving.Merger
	metrics   driven.PipelineMetrics
	workers   int

	// Status tracking
	mu        sync.RWMutex
	partition string
	running   atomic.Bool
	total     atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

// NewPipeline creates a pipeline.
// The raw store, merger and metrics are optional. Without a raw store no
// documents are archived; without a merger the final reconcile is skipped.
func NewPipeline(
	source driven.AdvisorySource,
	extractor *Extractor,
	sink driven.RecordSink,
	raw driven.RawStore,
	merger driving.Merger,
	metrics driven.PipelineMetrics,
	cfg PipelineConfig,
) *Pipeline {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pipeline{
		source:    source,
		extractor: extractor,
		sink:      sink,
		raw:       raw,
		merger:    merger,
		metrics:   metrics,
		workers:   workers,
	}
}

// Partitions lists the partitions available upstream.
func (p *Pipeline) Partitions(ctx context.Context) ([]string, error) {
	partitions, err := p.source.ListPartitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	return partitions, nil
}

// Run ingests each partition in order.
//
// A failed connectivity check aborts the run before any work starts. After
// that nothing is fatal: listing failures yield empty batches, failed items
// are excluded, and sink errors are recorded in the report.
func (p *Pipeline) Run(ctx context.Context, partitions []string) (*driving.RunReport, error) {
	if err := p.source.Validate(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConnectivity, err)
	}

	p.running.Store(true)
	defer p.running.Store(false)

	report := &driving.RunReport{
		RunID:   uuid.New().String(),
		Started: time.Now(),
	}
	logger.Info("Starting run %s for %d partitions", report.RunID, len(partitions))

	for _, partition := range partitions {
		pr := p.runPartition(ctx, report.RunID, partition)
		report.Partitions = append(report.Partitions, pr)
	}

	if p.merger != nil {
		stats, err := p.merger.Merge(ctx)
		if err != nil {
			logger.Error("merge: %v", err)
			report.MergeError = err
		} else {
			report.Merge = &stats
		}
	}

	report.Finished = time.Now()
	logger.Info("Run %s complete: %d records, %d excluded", report.RunID, report.Records(), report.Failures())
	return report, nil
}

// Status returns live progress of the current run.
func (p *Pipeline) Status() driving.IngestStatus {
	p.mu.RLock()
	partition := p.partition
	p.mu.RUnlock()

	return driving.IngestStatus{
		Running:   p.running.Load(),
		Partition: partition,
		Total:     int(p.total.Load()),
		Processed: int(p.processed.Load()),
		Failed:    int(p.failed.Load()),
	}
}

func (p *Pipeline) runPartition(ctx context.Context, runID, partition string) driving.PartitionReport {
	logger.Section("Partition " + partition)
	pr := driving.PartitionReport{Partition: partition}

	manifest, err := p.source.List(ctx, partition)
	if err != nil {
		logger.Warn("list %s: %v (continuing with an empty manifest)", partition, err)
		pr.ListError = err
		manifest = domain.NewManifest(partition)
	}

	items := manifest.Items()
	pr.Listed = len(items)
	p.resetStatus(partition, len(items))
	logger.Info("Partition %s: %d items across %d sub-partitions", partition, len(items), len(manifest.SubPartitions))

	records, counts := p.process(ctx, partition, items)
	pr.Fetched = counts.fetched
	pr.Extracted = len(records)
	pr.Failed = counts.failed
	pr.Unextracted = counts.unextracted

	batch := domain.Batch{Partition: partition, RunID: runID, Records: records}
	start := time.Now()
	if err := p.sink.WriteBatch(ctx, batch); err != nil {
		logger.Error("write batch %s to %s: %v", partition, p.sink.Name(), err)
		pr.SinkError = err
	} else {
		p.metrics.BatchWritten(p.sink.Name(), len(records), time.Since(start))
	}

	logger.Info("Partition %s: %d/%d extracted, %d failed, %d unextractable",
		partition, pr.Extracted, pr.Listed, pr.Failed, pr.Unextracted)
	return pr
}

type itemCounts struct {
	fetched     int
	failed      int
	unextracted int
}

type indexedRecord struct {
	index  int
	record domain.Record
}

type workerResult struct {
	records []indexedRecord
	counts  itemCounts
}

type job struct {
	index int
	item  domain.ManifestItem
}

// process fans items out over the worker pool. Each worker owns one slot of
// results; slots are merged once every worker has returned. The batch keeps
// manifest order.
func (p *Pipeline) process(ctx context.Context, partition string, items []domain.ManifestItem) ([]domain.Record, itemCounts) {
	if len(items) == 0 {
		return []domain.Record{}, itemCounts{}
	}

	workers := min(p.workers, len(items))
	jobs := make(chan job)
	results := make([]workerResult, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(res *workerResult) {
			defer wg.Done()
			for j := range jobs {
				rec, ok := p.processItem(ctx, partition, j.item, &res.counts)
				if ok {
					res.records = append(res.records, indexedRecord{index: j.index, record: rec})
				}
				p.processed.Add(1)
			}
		}(&results[w])
	}

	for i, item := range items {
		jobs <- job{index: i, item: item}
	}
	close(jobs)
	wg.Wait()

	var merged []indexedRecord
	var counts itemCounts
	for _, res := range results {
		merged = append(merged, res.records...)
		counts.fetched += res.counts.fetched
		counts.failed += res.counts.failed
		counts.unextracted += res.counts.unextracted
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].index < merged[j].index })

	records := make([]domain.Record, len(merged))
	for i, m := range merged {
		records[i] = m.record
	}
	return records, counts
}

// processItem runs fetch, archive and extract for one item. Failures are
// logged and counted, never propagated.
func (p *Pipeline) processItem(ctx context.Context, partition string, item domain.ManifestItem, counts *itemCounts) (domain.Record, bool) {
	data, err := p.source.Fetch(ctx, item.Location)
	if err != nil {
		logger.Warn("fetch %s: %v", item.Name, err)
		counts.failed++
		p.failed.Add(1)
		p.metrics.ItemFailed(partition, stageFetch)
		return domain.Record{}, false
	}
	counts.fetched++
	p.metrics.ItemFetched(partition)

	if p.raw != nil {
		if err := p.raw.Put(ctx, partition, item.Name, data); err != nil {
			logger.Warn("archive %s: %v", item.Name, err)
		}
	}

	rec, err := p.extractor.ExtractDocument(data)
	switch {
	case errors.Is(err, domain.ErrUnextractable):
		logger.Warn("extract %s: %v", item.Name, err)
		counts.unextracted++
		p.failed.Add(1)
		p.metrics.ItemFailed(partition, stageExtract)
		return domain.Record{}, false
	case err != nil:
		logger.Warn("decode %s: %v", item.Name, err)
		counts.failed++
		p.failed.Add(1)
		p.metrics.ItemFailed(partition, stageDecode)
		return domain.Record{}, false
	}

	p.metrics.RecordExtracted(partition)
	return rec, true
}

func (p *Pipeline) resetStatus(partition string, total int) {
	p.mu.Lock()
	p.partition = partition
	p.mu.Unlock()
	p.total.Store(int64(total))
	p.processed.Store(0)
	p.failed.Store(0)
}
