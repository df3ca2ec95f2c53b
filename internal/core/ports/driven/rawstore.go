package driven

import "context"

// RawStore archives advisory documents exactly as fetched, keyed by
// partition and file name.
type RawStore interface {
	// Put stores a document, replacing any previous copy.
	Put(ctx context.Context, partition, name string, data []byte) error

	// Get returns a stored document or domain.ErrNotFound.
	Get(ctx context.Context, partition, name string) ([]byte, error)

	// List returns the stored names of a partition in sorted order.
	List(ctx context.Context, partition string) ([]string, error)

	// Partitions returns the archived partitions in sorted order.
	Partitions(ctx context.Context) ([]string, error)

	// Close releases resources.
	Close() error
}
