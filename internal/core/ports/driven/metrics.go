package driven

import "time"

// PipelineMetrics records ingestion counters. Implementations must be safe
// for concurrent use by workers.
type PipelineMetrics interface {
	ItemFetched(partition string)
	ItemFailed(partition, stage string)
	RecordExtracted(partition string)
	BatchWritten(sink string, records int, elapsed time.Duration)
	Throttled()
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) ItemFetched(string) {}
func (NopMetrics) ItemFailed(string, string) {}
func (NopMetrics) RecordExtracted(string) {}
func (NopMetrics) BatchWritten(string, int, time.Duration) {}
func (NopMetrics) Throttled() {}
