package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driving"
	"github.com/custodia-labs/vulnsync/internal/logger"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [year...]",
	Short: "Download and flatten advisories",
	Long: `Lists, downloads and extracts every advisory of the given years and
writes one batch per year to the sink. Without arguments every year
published upstream is ingested, oldest first.`,
	Args: yearArgs,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if services == nil || services.Ingestor == nil {
		return errors.New("ingest service not configured")
	}
	ctx := cmd.Context()

	partitions := args
	if len(partitions) == 0 {
		var err error
		partitions, err = services.Ingestor.Partitions(ctx)
		if err != nil {
			return err
		}
	}

	cmd.Printf("Ingesting %d partition(s)...\n", len(partitions))
	report, err := runWithProgress(ctx, cmd, services.Ingestor, partitions)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	printReport(cmd, report)
	recordRun(cmd, report.Summary(domain.RunKindIngest))
	return nil
}

func printReport(cmd *cobra.Command, report *driving.RunReport) {
	for _, p := range report.Partitions {
		line := fmt.Sprintf("%s: %d listed, %d extracted, %d failed, %d unextractable",
			p.Partition, p.Listed, p.Extracted, p.Failed, p.Unextracted)
		if p.ListError != nil {
			line += " (listing failed)"
		}
		if p.SinkError != nil {
			line += fmt.Sprintf(" (write failed: %v)", p.SinkError)
		}
		cmd.Println(line)
	}
	if report.Merge != nil {
		printMerge(cmd, *report.Merge)
	}
	if report.MergeError != nil {
		cmd.Printf("Merge failed: %v\n", report.MergeError)
	}
	cmd.Printf("Run %s: %d records, %d excluded in %s\n",
		report.RunID, report.Records(), report.Failures(), report.Finished.Sub(report.Started).Round(time.Millisecond))
}

func printMerge(cmd *cobra.Command, m domain.MergeStats) {
	cmd.Printf("Merged %d staged rows (%d unique): %d inserted, %d updated, %d skipped\n",
		m.Staged, m.Unique, m.Inserted, m.Updated, m.Skipped)
}

// recordRun saves a run summary. Failures are logged, never returned.
func recordRun(cmd *cobra.Command, summary domain.RunSummary) {
	if services.History == nil {
		return
	}
	if err := services.History.RecordRun(cmd.Context(), summary); err != nil {
		logger.Warn("record run %s: %v", summary.RunID, err)
	}
}
