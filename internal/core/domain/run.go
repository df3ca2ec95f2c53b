package domain

import "time"

// RunKind names the stage that produced a run.
type RunKind string

// Run kinds.
const (
	RunKindIngest    RunKind = "ingest"
	RunKindTransform RunKind = "transform"
	RunKindMerge     RunKind = "merge"
)

// RunSummary is the persisted outcome of one run.
type RunSummary struct {
	RunID      string
	Kind       RunKind
	Started    time.Time
	Finished   time.Time
	Partitions []string
	Records    int
	Failures   int
	Merge      *MergeStats
	MergeError string
}

// Duration returns how long the run took.
func (s RunSummary) Duration() time.Duration {
	if s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}
