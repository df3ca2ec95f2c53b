package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
)

var transformCmd = &cobra.Command{
	Use:   "transform [year...]",
	Short: "Re-extract records from archived documents",
	Long: `Reads the raw documents a previous ingest archived and writes freshly
extracted records to the sink, without contacting GitHub. Without arguments
every archived year is transformed. Requires a raw archive (raw.kind bolt
or gcs).`,
	Args: yearArgs,
	RunE: runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, args []string) error {
	if services == nil || services.Transformer == nil {
		return errors.New("transform needs a raw archive; set raw.kind")
	}

	ctx := cmd.Context()

	partitions := args
	if len(partitions) == 0 {
		var err error
		partitions, err = services.Transformer.Partitions(ctx)
		if err != nil {
			return err
		}
		if len(partitions) == 0 {
			return errors.New("raw archive is empty; run ingest first")
		}
	}

	cmd.Printf("Transforming %d partition(s)...\n", len(partitions))
	report, err := services.Transformer.Run(ctx, partitions)
	if err != nil {
		return fmt.Errorf("transform failed: %w", err)
	}

	printReport(cmd, report)
	recordRun(cmd, report.Summary(domain.RunKindTransform))
	return nil
}
