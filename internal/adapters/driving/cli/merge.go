package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Reconcile staged batches into the records table",
	Long: `Folds every staged batch into the records table, keeping the most
recently updated copy of each CVE. Ingest and transform already do this
at the end of a run; use merge after an interrupted run.`,
	Args: cobra.NoArgs,
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Merger == nil {
		return errors.New("merge service not configured")
	}

	summary := domain.RunSummary{
		RunID:   uuid.New().String(),
		Kind:    domain.RunKindMerge,
		Started: time.Now(),
	}
	stats, err := services.Merger.Merge(cmd.Context())
	summary.Finished = time.Now()
	if err != nil {
		summary.MergeError = err.Error()
		recordRun(cmd, summary)
		return fmt.Errorf("merge failed: %w", err)
	}

	summary.Merge = &stats
	printMerge(cmd, stats)
	recordRun(cmd, summary)
	return nil
}
