package bolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driven"
)

// Ensure RawStore implements the interface.
var _ driven.RawStore = (*RawStore)(nil)

const (
	// DatabaseFile is the default archive file name.
	DatabaseFile = "raw.db"

	rootBucket = "advisories"
)

// RawStore archives raw documents in a bolt database.
type RawStore struct {
	db   *bolt.DB
	path string
}

// Path returns the archive location inside dir.
func Path(dir string) string {
	return filepath.Join(dir, DatabaseFile)
}

// NewRawStore opens (creating if needed) the archive at path.
func NewRawStore(path string) (*RawStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to mkdir: %w", err)
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(rootBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create a bucket: %w", err)
	}

	return &RawStore{db: db, path: path}, nil
}

// Put stores a document, replacing any previous copy.
func (s *RawStore) Put(_ context.Context, partition, name string, data []byte) error {
	err := s.db.Batch(func(tx *bolt.Tx) error {
		nested, err := tx.Bucket([]byte(rootBucket)).CreateBucketIfNotExists([]byte(partition))
		if err != nil {
			return fmt.Errorf("failed to create a bucket: %w", err)
		}
		return nested.Put([]byte(name), data)
	})
	if err != nil {
		return fmt.Errorf("error in batch update: %w", err)
	}
	return nil
}

// Get returns a stored document or domain.ErrNotFound.
func (s *RawStore) Get(_ context.Context, partition, name string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		nested := tx.Bucket([]byte(rootBucket)).Bucket([]byte(partition))
		if nested == nil {
			return domain.ErrNotFound
		}
		v := nested.Get([]byte(name))
		if v == nil {
			return domain.ErrNotFound
		}
		// Values are only valid inside the transaction
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns the stored names of a partition in sorted order.
func (s *RawStore) List(_ context.Context, partition string) ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		nested := tx.Bucket([]byte(rootBucket)).Bucket([]byte(partition))
		if nested == nil {
			return nil
		}
		return nested.ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("error in db view: %w", err)
	}
	return names, nil
}

// Partitions returns the archived partitions in sorted order.
func (s *RawStore) Partitions(_ context.Context) ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(rootBucket)).ForEachBucket(func(k []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("error in db view: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *RawStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close DB: %w", err)
	}
	return nil
}
