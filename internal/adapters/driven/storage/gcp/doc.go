// Package gcp provides Google Cloud adapters: a Cloud Storage archive for raw
// advisory documents, a BigQuery record sink with staged MERGE, and a Secret
// Manager reader for credentials kept out of the config file.
//
// Both use the REST clients from google.golang.org/api. Credentials come from
// a service account file when configured, otherwise from Application Default
// Credentials.
//
// Objects are named <prefix><partition>/<file>. BigQuery batches are loaded
// into a staging table with load jobs (never streaming inserts, so staging
// can be truncated right after the merge).
package gcp
