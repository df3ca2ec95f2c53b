package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.RecordSink = (*Store)(nil)
	_ driven.Reconciler = (*Store)(nil)
)

const (
	// DefaultSchema holds the records and staging tables.
	DefaultSchema = "vulnsync"

	// DefaultCopyBatch bounds the rows sent per COPY.
	DefaultCopyBatch = 500
)

var safeIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func isSafeIdent(s string) bool {
	return safeIdent.MatchString(s)
}

// Config holds the sink settings.
type Config struct {
	DSN       string
	Schema    string
	CopyBatch int
}

// Store is a PostgreSQL record sink.
type Store struct {
	pool      *pgxpool.Pool
	schema    string
	copyBatch int
}

// NewStore connects and ensures the tables exist.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", domain.ErrInvalidInput)
	}
	if cfg.Schema == "" {
		cfg.Schema = DefaultSchema
	}
	if !isSafeIdent(cfg.Schema) {
		return nil, fmt.Errorf("%w: unsafe schema name %q", domain.ErrInvalidInput, cfg.Schema)
	}
	if cfg.CopyBatch <= 0 {
		cfg.CopyBatch = DefaultCopyBatch
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	s := &Store{pool: pool, schema: cfg.Schema, copyBatch: cfg.CopyBatch}
	if err := s.ensureTables(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure tables: %w", err)
	}
	return s, nil
}

// Name identifies the sink.
func (s *Store) Name() string {
	return "postgres"
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) ensureTables(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL(s.schema))
	return err
}

// schemaDDL creates the schema and both tables.
func schemaDDL(schema string) string {
	cols := columnDefs()
	return fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS "%[1]s";

CREATE TABLE IF NOT EXISTS "%[1]s".records (
  id text PRIMARY KEY,
%[2]s
);

CREATE TABLE IF NOT EXISTS "%[1]s".staging (
  seq bigserial PRIMARY KEY,
  partition_key text NOT NULL,
  run_id text NOT NULL,
  id text NOT NULL,
%[2]s
);

CREATE INDEX IF NOT EXISTS staging_id_idx ON "%[1]s".staging (id);
`, schema, cols)
}

// columnDefs renders every non-id column definition.
func columnDefs() string {
	defs := lo.Map(domain.Columns[1:], func(c string, _ int) string {
		switch c {
		case "known_exploited":
			return "  " + c + " boolean NOT NULL DEFAULT false"
		case "impacted_products", "vulnerable_versions":
			return "  " + c + " text[] NOT NULL DEFAULT '{}'"
		default:
			return "  " + c + " text NOT NULL DEFAULT ''"
		}
	})
	return strings.Join(defs, ",\n")
}

// WriteBatch copies the batch into staging in chunks.
func (s *Store) WriteBatch(ctx context.Context, batch domain.Batch) error {
	if len(batch.Records) == 0 {
		return nil
	}

	cols := append([]string{"partition_key", "run_id"}, domain.Columns...)
	for _, chunk := range lo.Chunk(batch.Records, s.copyBatch) {
		rows := lo.Map(chunk, func(r domain.Record, _ int) []any {
			return append([]any{batch.Partition, batch.RunID}, recordValues(&r)...)
		})
		if _, err := s.pool.CopyFrom(ctx,
			pgx.Identifier{s.schema, "staging"},
			cols,
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("copy batch %s: %w", batch.Partition, err)
		}
	}
	return nil
}

// Reconcile merges staged rows into records and truncates staging.
func (s *Store) Reconcile(ctx context.Context) (domain.MergeStats, error) {
	var stats domain.MergeStats

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := tx.QueryRow(ctx, fmt.Sprintf(
		`SELECT count(*), count(DISTINCT id) FROM "%s".staging`, s.schema,
	)).Scan(&stats.Staged, &stats.Unique); err != nil {
		return stats, fmt.Errorf("count staging: %w", err)
	}

	if err := tx.QueryRow(ctx, mergeSQL(s.schema)).Scan(&stats.Inserted, &stats.Updated); err != nil {
		return domain.MergeStats{}, fmt.Errorf("merge: %w", err)
	}
	stats.Skipped = stats.Unique - stats.Inserted - stats.Updated

	if _, err := tx.Exec(ctx, fmt.Sprintf(`TRUNCATE "%s".staging`, s.schema)); err != nil {
		return domain.MergeStats{}, fmt.Errorf("truncate staging: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.MergeStats{}, fmt.Errorf("commit: %w", err)
	}
	return stats, nil
}

// mergeSQL upserts the most recent staged row per id and reports how many
// rows were inserted and updated. xmax is zero only for fresh inserts.
func mergeSQL(schema string) string {
	cols := strings.Join(domain.Columns, ", ")
	updates := strings.Join(lo.Map(domain.Columns[1:], func(c string, _ int) string {
		return c + " = EXCLUDED." + c
	}), ", ")

	return fmt.Sprintf(`
WITH ranked AS (
  SELECT DISTINCT ON (id) %[2]s
  FROM "%[1]s".staging
  ORDER BY id, updated_date DESC, published_date DESC, seq ASC
), upserted AS (
  INSERT INTO "%[1]s".records AS r (%[2]s)
  SELECT %[2]s FROM ranked
  ON CONFLICT (id) DO UPDATE SET %[3]s
  WHERE (EXCLUDED.updated_date, EXCLUDED.published_date) >= (r.updated_date, r.published_date)
  RETURNING (xmax = 0) AS inserted
)
SELECT count(*) FILTER (WHERE inserted), count(*) FILTER (WHERE NOT inserted) FROM upserted
`, schema, cols, updates)
}

// Get retrieves a reconciled record by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Record, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM "%s".records WHERE id = $1`, strings.Join(domain.Columns, ", "), s.schema), id)

	r := domain.NewRecord()
	if err := row.Scan(recordTargets(&r)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return &r, nil
}

// recordValues flattens a record in Columns order.
func recordValues(r *domain.Record) []any {
	products := r.ImpactedProducts
	if products == nil {
		products = []string{}
	}
	versions := r.VulnerableVersions
	if versions == nil {
		versions = []string{}
	}
	return []any{
		r.ID, r.PublishedDate, r.UpdatedDate, r.KnownExploited, r.KnownExploitedDate,
		r.CVSSVersion, r.BaseScore, r.BaseSeverity,
		r.AttackVector, r.AttackComplexity, r.PrivilegesRequired, r.UserInteraction,
		r.Scope, r.ConfidentialityImpact, r.IntegrityImpact, r.AvailabilityImpact,
		r.SSVCTimestamp, r.SSVCExploitation, r.SSVCAutomatable, r.SSVCTechnicalImpact, r.SSVCDecision,
		r.ImpactedVendor, products, versions, r.CWENumber, r.CWEDescription,
	}
}

// recordTargets returns scan destinations in Columns order.
func recordTargets(r *domain.Record) []any {
	return []any{
		&r.ID, &r.PublishedDate, &r.UpdatedDate, &r.KnownExploited, &r.KnownExploitedDate,
		&r.CVSSVersion, &r.BaseScore, &r.BaseSeverity,
		&r.AttackVector, &r.AttackComplexity, &r.PrivilegesRequired, &r.UserInteraction,
		&r.Scope, &r.ConfidentialityImpact, &r.IntegrityImpact, &r.AvailabilityImpact,
		&r.SSVCTimestamp, &r.SSVCExploitation, &r.SSVCAutomatable, &r.SSVCTechnicalImpact, &r.SSVCDecision,
		&r.ImpactedVendor, &r.ImpactedProducts, &r.VulnerableVersions, &r.CWENumber, &r.CWEDescription,
	}
}
