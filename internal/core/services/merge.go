package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driven"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driving"
	"github.com/custodia-labs/vulnsync/internal/logger"
)

// Ensure MergeCoordinator implements the interface.
var _ driving.Merger = (*MergeCoordinator)(nil)

// MergeCoordinator asks a staging sink to fold its staged batches into the
// persistent target, keeping the most recent row per record id.
type MergeCoordinator struct {
	sink driven.RecordSink
}

// NewMergeCoordinator creates a merge coordinator for a sink.
func NewMergeCoordinator(sink driven.RecordSink) *MergeCoordinator {
	return &MergeCoordinator{sink: sink}
}

// Merge reconciles the sink. Sinks that do not stage are a no-op.
func (m *MergeCoordinator) Merge(ctx context.Context) (domain.MergeStats, error) {
	reconciler, ok := m.sink.(driven.Reconciler)
	if !ok {
		logger.Debug("sink %s does not stage batches, skipping merge", m.sink.Name())
		return domain.MergeStats{}, nil
	}

	stats, err := reconciler.Reconcile(ctx)
	if err != nil {
		return stats, fmt.Errorf("reconcile %s: %w", m.sink.Name(), err)
	}

	logger.Info("Merged %s: staged=%d unique=%d inserted=%d updated=%d skipped=%d",
		m.sink.Name(), stats.Staged, stats.Unique, stats.Inserted, stats.Updated, stats.Skipped)
	return stats, nil
}
