package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var yearsCmd = &cobra.Command{
	Use:   "years",
	Short: "List the years published upstream",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if services == nil || services.Ingestor == nil {
			return errors.New("ingest service not configured")
		}
		years, err := services.Ingestor.Partitions(cmd.Context())
		if err != nil {
			return err
		}
		for _, y := range years {
			fmt.Fprintln(cmd.OutOrStdout(), y)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(yearsCmd)
}
