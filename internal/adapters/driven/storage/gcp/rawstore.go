package gcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	storage "google.golang.org/api/storage/v1"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driven"
)

// Ensure RawStore implements the interface.
var _ driven.RawStore = (*RawStore)(nil)

// RawStore archives raw documents as Cloud Storage objects.
type RawStore struct {
	svc     *storage.Service
	bucket  string
	prefix  string
	limiter *RateLimiter
}

// NewRawStore creates an archive in cfg.Bucket.
func NewRawStore(ctx context.Context, cfg Config) (*RawStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: gcs bucket is required", domain.ErrInvalidInput)
	}
	svc, err := NewStorageService(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &RawStore{
		svc:     svc,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		limiter: NewRateLimiter(ServiceStorage),
	}, nil
}

func (s *RawStore) objectName(partition, name string) string {
	return s.prefix + partition + "/" + name
}

// Put uploads a document, replacing any previous copy.
func (s *RawStore) Put(ctx context.Context, partition, name string, data []byte) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	obj := &storage.Object{
		Name:        s.objectName(partition, name),
		ContentType: "application/json",
	}
	_, err := s.svc.Objects.Insert(s.bucket, obj).Media(bytes.NewReader(data)).Context(ctx).Do()
	if err != nil {
		s.limiter.observe(err)
		return fmt.Errorf("upload %s: %w", obj.Name, WrapError(err))
	}
	return nil
}

// Get downloads a document or returns domain.ErrNotFound.
func (s *RawStore) Get(ctx context.Context, partition, name string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	object := s.objectName(partition, name)
	resp, err := s.svc.Objects.Get(s.bucket, object).Context(ctx).Download()
	if err != nil {
		s.limiter.observe(err)
		return nil, fmt.Errorf("download %s: %w", object, WrapError(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", object, err)
	}
	return data, nil
}

// List returns the stored JSON documents of a partition in sorted order.
// Objects without a .json suffix are ignored.
func (s *RawStore) List(ctx context.Context, partition string) ([]string, error) {
	prefix := s.objectName(partition, "")

	var names []string
	err := s.svc.Objects.List(s.bucket).Prefix(prefix).Fields("items(name)", "nextPageToken").Pages(ctx,
		func(page *storage.Objects) error {
			for _, obj := range page.Items {
				name := strings.TrimPrefix(obj.Name, prefix)
				if strings.HasSuffix(name, ".json") && !strings.Contains(name, "/") {
					names = append(names, name)
				}
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, WrapError(err))
	}

	sort.Strings(names)
	return names, nil
}

// Partitions returns the partition directories under the prefix, sorted.
func (s *RawStore) Partitions(ctx context.Context) ([]string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var out []string
	err := s.svc.Objects.List(s.bucket).Prefix(s.prefix).Delimiter("/").Fields("prefixes", "nextPageToken").Pages(ctx,
		func(page *storage.Objects) error {
			for _, p := range page.Prefixes {
				partition := strings.TrimSuffix(strings.TrimPrefix(p, s.prefix), "/")
				if partition != "" {
					out = append(out, partition)
				}
			}
			return nil
		})
	if err != nil {
		s.limiter.observe(err)
		return nil, fmt.Errorf("list partitions under %q: %w", s.prefix, WrapError(err))
	}

	sort.Strings(out)
	return out, nil
}

// Close is a no-op; the service holds no resources of its own.
func (s *RawStore) Close() error { return nil }
