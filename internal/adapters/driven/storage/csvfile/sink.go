// Package csvfile writes one CSV file per partition.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driven"
)

// Ensure Sink implements the interface.
var _ driven.RecordSink = (*Sink)(nil)

// Sink writes each batch to <dir>/cve_data_<partition>.csv, replacing any
// previous file for that partition. It does not stage or merge.
type Sink struct {
	dir string
}

// NewSink creates the output directory if needed.
func NewSink(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &Sink{dir: dir}, nil
}

// Name identifies the sink.
func (s *Sink) Name() string { return "csv" }

// Path returns the file a partition is written to.
func (s *Sink) Path(partition string) string {
	return filepath.Join(s.dir, fmt.Sprintf("cve_data_%s.csv", partition))
}

// WriteBatch writes the header and every record. The file is written to a
// temporary name and renamed so readers never see a partial file.
func (s *Sink) WriteBatch(_ context.Context, batch domain.Batch) error {
	tmp, err := os.CreateTemp(s.dir, ".cve_data_*.csv")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after rename

	w := csv.NewWriter(tmp)
	if err := w.Write(domain.Columns); err != nil {
		tmp.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	for i := range batch.Records {
		if err := w.Write(batch.Records[i].Values()); err != nil {
			tmp.Close()
			return fmt.Errorf("writing %s: %w", batch.Records[i].ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.Path(batch.Partition)); err != nil {
		return fmt.Errorf("renaming output: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *Sink) Close() error { return nil }
