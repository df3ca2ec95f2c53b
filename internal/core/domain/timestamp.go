package domain

import "time"

// TimestampLayout is the fixed-width UTC form record timestamps are stored
// in. Equal width keeps string order equal to time order in every sink.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// NormalizeTimestamp converts an RFC 3339 timestamp to TimestampLayout in
// UTC, truncated to milliseconds. Values that do not parse are returned
// unchanged.
func NormalizeTimestamp(s string) string {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return t.UTC().Format(TimestampLayout)
}
