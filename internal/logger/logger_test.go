package logger

import (
	"bytes"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture redirects output to a buffer and restores the defaults afterwards.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelWarn)
		SetTimestamps(false)
		now = time.Now
	})
	return &buf
}

func emitAll() {
	Debug("fetched %s", "CVE-2024-0001.json")
	Info("Transformed %s: %d/%d records", "2024", 3, 3)
	Warn("listing 2024/1xxx failed: %s", "boom")
	Error("sink %s: %v", "sqlite", "disk full")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"trace", LevelWarn, true},
		{"", LevelWarn, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelThreshold(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "[DEBUG] fetched CVE-2024-0001.json\n[INFO] Transformed 2024: 3/3 records\n[WARN] listing 2024/1xxx failed: boom\n[ERROR] sink sqlite: disk full\n"},
		{LevelInfo, "[INFO] Transformed 2024: 3/3 records\n[WARN] listing 2024/1xxx failed: boom\n[ERROR] sink sqlite: disk full\n"},
		{LevelWarn, "[WARN] listing 2024/1xxx failed: boom\n[ERROR] sink sqlite: disk full\n"},
		{LevelError, "[ERROR] sink sqlite: disk full\n"},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			buf := capture(t)
			SetLevel(tt.level)

			emitAll()

			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestSetVerbose(t *testing.T) {
	capture(t)

	SetVerbose(true)
	assert.Equal(t, LevelDebug, GetLevel())
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.Equal(t, LevelWarn, GetLevel())
	assert.False(t, IsVerbose())

	SetLevel(LevelInfo)
	assert.True(t, IsVerbose(), "info level counts as verbose")
}

func TestSection(t *testing.T) {
	buf := capture(t)

	SetLevel(LevelWarn)
	Section("2024")
	assert.Empty(t, buf.String())

	SetLevel(LevelInfo)
	Section("2024")
	assert.Equal(t, "\n=== 2024 ===\n", buf.String())
}

func TestTimestamps(t *testing.T) {
	buf := capture(t)
	now = func() time.Time { return time.Date(2024, 6, 1, 14, 30, 0, 0, time.FixedZone("CEST", 2*60*60)) }
	SetTimestamps(true)

	Warn("rate limited, sleeping %s", "5s")

	assert.Equal(t, "2024-06-01T12:30:00Z [WARN] rate limited, sleeping 5s\n", buf.String())
}

func TestConcurrentWritesKeepLinesWhole(t *testing.T) {
	buf := capture(t)
	SetLevel(LevelDebug)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Debug("worker %02d done", i)
		}()
	}
	wg.Wait()

	lines := bytes.Split(bytes.TrimSuffix(buf.Bytes(), []byte("\n")), []byte("\n"))
	require.Len(t, lines, 20)
	for _, line := range lines {
		assert.Regexp(t, `^\[DEBUG\] worker \d{2} done$`, string(line))
	}
}
