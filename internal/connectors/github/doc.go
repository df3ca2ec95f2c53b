// Package github provides the advisory source backed by a GitHub repository.
//
// The repository is laid out as one directory per year, each holding
// sub-directories of CVE-*.json documents. Directories are listed through the
// REST contents API using go-github; documents are downloaded from their raw
// URLs using the same authenticated HTTP session.
//
// Rate limiting has two sides. An optional token bucket paces requests, and
// a throttled response (403 mentioning the rate limit) puts the calling
// worker to sleep until the signalled reset plus a small buffer, after which
// the request is retried once.
package github
