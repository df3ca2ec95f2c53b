package driven

import (
	"context"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
)

// RunHistory persists run summaries.
type RunHistory interface {
	// RecordRun stores a summary, replacing any with the same run id.
	RecordRun(ctx context.Context, summary domain.RunSummary) error

	// RecentRuns returns up to limit summaries, most recent first.
	RecentRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)
}
