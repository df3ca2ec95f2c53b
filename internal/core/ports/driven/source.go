package driven

import (
	"context"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
)

// DirectoryLister enumerates the advisory files published upstream.
type DirectoryLister interface {
	// ListPartitions returns the partition keys (years) available upstream.
	ListPartitions(ctx context.Context) ([]string, error)

	// List builds the manifest of one partition.
	// A failing sub-partition degrades to an empty list and is logged.
	// A failure to list the partition root is returned as an error.
	List(ctx context.Context, partition string) (*domain.Manifest, error)
}

// DocumentFetcher retrieves a single advisory document.
type DocumentFetcher interface {
	// Fetch downloads the document at location.
	// Throttled responses are retried at most once.
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// AdvisorySource is the remote document store: a lister and fetcher sharing
// one HTTP session, plus a connectivity pre-check.
type AdvisorySource interface {
	DirectoryLister
	DocumentFetcher

	// Validate checks the source is reachable before any work starts.
	Validate(ctx context.Context) error
}
