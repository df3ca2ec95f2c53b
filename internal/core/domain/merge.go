package domain

import (
	"strings"
	"time"
)

// compareTimestamps orders two timestamps. When both parse as RFC 3339 they
// are compared as instants, otherwise as strings.
func compareTimestamps(a, b string) int {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA == nil && errB == nil {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}

// CompareRecency orders two records by (updated_date, published_date).
// The result is negative when a is older than b, zero on a tie.
func CompareRecency(a, b *Record) int {
	if c := compareTimestamps(a.UpdatedDate, b.UpdatedDate); c != 0 {
		return c
	}
	return compareTimestamps(a.PublishedDate, b.PublishedDate)
}

// Newer reports whether a is strictly more recent than b.
func Newer(a, b *Record) bool {
	return CompareRecency(a, b) > 0
}

// Dedupe keeps one record per id: the most recent one, or the earliest in
// input order on a tie. Output order follows first appearance of each id.
func Dedupe(records []Record) []Record {
	index := make(map[string]int, len(records))
	out := make([]Record, 0, len(records))
	for i := range records {
		r := records[i]
		pos, ok := index[r.ID]
		if !ok {
			index[r.ID] = len(out)
			out = append(out, r)
			continue
		}
		if Newer(&r, &out[pos]) {
			out[pos] = r
		}
	}
	return out
}

// Reconcile applies staged records to target, keyed by id.
// Staged rows are first reduced with Dedupe. A surviving row is inserted when
// its id is absent from target and replaces the target row when it is not
// older than it.
func Reconcile(target map[string]Record, staged []Record) MergeStats {
	stats := MergeStats{Staged: len(staged)}
	unique := Dedupe(staged)
	stats.Unique = len(unique)

	for _, r := range unique {
		existing, ok := target[r.ID]
		switch {
		case !ok:
			target[r.ID] = r
			stats.Inserted++
		case CompareRecency(&r, &existing) >= 0:
			target[r.ID] = r
			stats.Updated++
		default:
			stats.Skipped++
		}
	}
	return stats
}
