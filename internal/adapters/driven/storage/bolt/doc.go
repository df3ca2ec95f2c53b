// Package bolt provides a bbolt-backed archive of raw advisory documents.
//
// Documents are stored under a root bucket with one nested bucket per
// partition, keyed by file name. Writes from concurrent workers are
// coalesced with bolt's Batch.
package bolt
