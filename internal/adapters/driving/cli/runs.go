package cli

import (
	"errors"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	if services == nil || services.History == nil {
		return errors.New("run history not configured")
	}
	runs, err := services.History.RecentRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = w.Write([]byte("STARTED\tKIND\tPARTITIONS\tRECORDS\tEXCLUDED\tMERGE\tRUN\n"))
	for _, r := range runs {
		merge := "-"
		switch {
		case r.MergeError != "":
			merge = "failed"
		case r.Merge != nil:
			merge = formatInt(r.Merge.Inserted) + "+" + formatInt(r.Merge.Updated)
		}
		partitions := strings.Join(r.Partitions, ",")
		if partitions == "" {
			partitions = "-"
		}
		_, _ = w.Write([]byte(strings.Join([]string{
			r.Started.Local().Format("2006-01-02 15:04:05"),
			string(r.Kind),
			partitions,
			formatInt(r.Records),
			formatInt(r.Failures),
			merge,
			r.RunID,
		}, "\t") + "\n"))
	}
	return w.Flush()
}

func formatInt(n int) string {
	return strconv.Itoa(n)
}
