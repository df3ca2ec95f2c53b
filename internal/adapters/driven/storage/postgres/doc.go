// Package postgres provides a PostgreSQL record sink built on pgx.
//
// Batches are bulk-loaded into a staging table with COPY and merged into the
// records table by Reconcile, which keeps the most recent row per id using
// DISTINCT ON and an upsert guarded on (updated_date, published_date).
package postgres
