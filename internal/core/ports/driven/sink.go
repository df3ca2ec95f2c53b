package driven

import (
	"context"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
)

// RecordSink receives normalized records one partition at a time.
type RecordSink interface {
	// Name identifies the sink in logs.
	Name() string

	// WriteBatch accepts all records extracted for one partition.
	// Empty batches are valid.
	WriteBatch(ctx context.Context, batch domain.Batch) error

	// Close releases resources.
	Close() error
}

// Reconciler is implemented by sinks that stage batches and merge them into
// a persistent target keyed by record id. The surviving row per id is the
// one with the greatest (updated_date, published_date).
type Reconciler interface {
	Reconcile(ctx context.Context) (domain.MergeStats, error)
}
