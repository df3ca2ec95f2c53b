package github

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/logger"
)

// advisoryPattern matches advisory document names.
var advisoryPattern = regexp.MustCompile(`^CVE-.*\.json$`)

// nonPartitions are top-level directories that never hold advisories.
var nonPartitions = map[string]bool{
	".github": true,
	"assets":  true,
}

// ListPartitions returns the top-level directories of the repository,
// sorted, excluding repository metadata.
func (c *Client) ListPartitions(ctx context.Context) ([]string, error) {
	entries, err := c.listDir(ctx, "")
	if err != nil {
		return nil, err
	}

	var partitions []string
	for _, e := range entries {
		if e.GetType() == "dir" && !nonPartitions[e.GetName()] {
			partitions = append(partitions, e.GetName())
		}
	}
	sort.Strings(partitions)
	return partitions, nil
}

// List builds the manifest for one partition. Files directly under the
// partition root are ignored; advisories live one level down.
func (c *Client) List(ctx context.Context, partition string) (*domain.Manifest, error) {
	entries, err := c.listDir(ctx, partition)
	if err != nil {
		return nil, fmt.Errorf("list partition %s: %w", partition, err)
	}

	manifest := domain.NewManifest(partition)
	for _, e := range entries {
		if e.GetType() != "dir" {
			continue
		}
		sub := e.GetName()
		files, err := c.listDir(ctx, partition+"/"+sub)
		if err != nil {
			logger.Warn("list %s/%s: %v (treating as empty)", partition, sub, err)
			manifest.SubPartitions[sub] = []domain.ManifestItem{}
			continue
		}

		manifest.SubPartitions[sub] = []domain.ManifestItem{}
		for _, f := range files {
			if f.GetType() != "file" || !advisoryPattern.MatchString(f.GetName()) {
				continue
			}
			manifest.Add(domain.ManifestItem{
				Name:         f.GetName(),
				Location:     f.GetDownloadURL(),
				SubPartition: sub,
			})
		}
		logger.Debug("%s/%s: %d advisories", partition, sub, len(manifest.SubPartitions[sub]))
	}
	return manifest, nil
}

// listDir returns the entries of a directory, retrying once after a
// throttled response.
func (c *Client) listDir(ctx context.Context, path string) ([]*gh.RepositoryContent, error) {
	opts := &gh.RepositoryContentGetOptions{Ref: c.cfg.Ref}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		file, dir, resp, err := c.gh.Repositories.GetContents(ctx, c.cfg.Owner, c.cfg.Repo, path, opts)
		if err != nil {
			if hr, ok := throttledResponse(err); ok && attempt == 0 && c.limiter.Backoff(hr) {
				continue
			}
			return nil, c.wrapError(err, "get contents")
		}
		c.updateRateLimitFromResponse(resp)

		if file != nil {
			return nil, fmt.Errorf("%w: %q", ErrNotDirectory, path)
		}
		return dir, nil
	}
}
