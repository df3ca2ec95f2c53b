package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/vulnsync/internal/core/ports/driving"
)

const progressInterval = 500 * time.Millisecond

var termCheck = term.IsTerminal

// runWithProgress runs an ingest and, on a terminal, redraws a progress
// line until it returns.
func runWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	ing driving.Ingestor,
	partitions []string,
) (*driving.RunReport, error) {
	if !isTerminal(cmd.OutOrStdout()) {
		return ing.Run(ctx, partitions)
	}

	type result struct {
		report *driving.RunReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := ing.Run(ctx, partitions)
		done <- result{report, err}
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case r := <-done:
			cmd.Print("\r\033[K")
			return r.report, r.err
		case <-ticker.C:
			st := ing.Status()
			if st.Running && st.Total > 0 {
				cmd.Printf("\r\033[K%s: %d/%d (%d failed)", st.Partition, st.Processed, st.Total, st.Failed)
			}
		}
	}
}
