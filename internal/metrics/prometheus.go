// Package metrics provides Prometheus metrics for the ingestion pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/custodia-labs/vulnsync/internal/core/ports/driven"
)

var _ driven.PipelineMetrics = (*Recorder)(nil)

// Recorder implements driven.PipelineMetrics on Prometheus collectors.
type Recorder struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	itemsFetched     *prometheus.CounterVec
	itemsFailed      *prometheus.CounterVec
	recordsExtracted *prometheus.CounterVec
	batchRecords     *prometheus.CounterVec
	batchDuration    *prometheus.HistogramVec
	throttled        prometheus.Counter
}

// NewRecorder creates a recorder and registers its collectors.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace:        "vulnsync",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(r)
	}

	factory := promauto.With(r.registry)

	r.itemsFetched = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "items_fetched_total",
		Help:      "Advisory documents fetched, by partition.",
	}, []string{"partition"})

	r.itemsFailed = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "items_failed_total",
		Help:      "Advisory documents excluded from a batch, by partition and stage.",
	}, []string{"partition", "stage"})

	r.recordsExtracted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "records_extracted_total",
		Help:      "Records extracted, by partition.",
	}, []string{"partition"})

	r.batchRecords = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "batch_records_total",
		Help:      "Records written to a sink.",
	}, []string{"sink"})

	r.batchDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "batch_write_seconds",
		Help:      "Time spent writing one batch to a sink.",
		Buckets:   r.histogramBuckets,
	}, []string{"sink"})

	r.throttled = factory.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "throttled_total",
		Help:      "Upstream responses that signalled rate limiting.",
	})

	return r
}

func (r *Recorder) ItemFetched(partition string) {
	r.itemsFetched.WithLabelValues(partition).Inc()
}

func (r *Recorder) ItemFailed(partition, stage string) {
	r.itemsFailed.WithLabelValues(partition, stage).Inc()
}

func (r *Recorder) RecordExtracted(partition string) {
	r.recordsExtracted.WithLabelValues(partition).Inc()
}

func (r *Recorder) BatchWritten(sink string, records int, elapsed time.Duration) {
	r.batchRecords.WithLabelValues(sink).Add(float64(records))
	r.batchDuration.WithLabelValues(sink).Observe(elapsed.Seconds())
}

func (r *Recorder) Throttled() {
	r.throttled.Inc()
}
