package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/vulnsync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/vulnsync/internal/core/domain"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.RecordSink = (*Store)(nil)
	_ driven.Reconciler = (*Store)(nil)
	_ driven.RunHistory = (*Store)(nil)
)

// DatabaseFile is the file name created inside the data directory.
const DatabaseFile = "vulnsync.db"

// recordColumns is the shared column list of the records and staging tables.
var recordColumns = strings.Join(domain.Columns, ", ")

// Store is a SQLite-backed record sink. Batches land in a staging table and
// are folded into the records table by Reconcile.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in the specified data directory.
// If dataDir is empty, defaults to ~/.vulnsync/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".vulnsync", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Name identifies the sink.
func (s *Store) Name() string {
	return "sqlite"
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_records.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Record Sink ====================

// WriteBatch stages every record of the batch in one transaction.
func (s *Store) WriteBatch(ctx context.Context, batch domain.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(domain.Columns)+2), ", ")
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO staging (partition_key, run_id, "+recordColumns+") VALUES ("+placeholders+")")
	if err != nil {
		return fmt.Errorf("preparing staging insert: %w", err)
	}
	defer stmt.Close()

	for i := range batch.Records {
		args, err := recordArgs(&batch.Records[i])
		if err != nil {
			return err
		}
		args = append([]any{batch.Partition, batch.RunID}, args...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("staging %s: %w", batch.Records[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

// rankedStaging keeps the most recent staged row per id. Ties keep the row
// staged first.
const rankedStaging = `
	WITH ranked AS (
		SELECT *, ROW_NUMBER() OVER (
			PARTITION BY id
			ORDER BY updated_date DESC, published_date DESC, seq ASC
		) AS rn
		FROM staging
	)`

// Reconcile merges staged rows into records and clears staging.
// An incoming row replaces the stored one when its (updated_date,
// published_date) is not older.
func (s *Store) Reconcile(ctx context.Context) (domain.MergeStats, error) {
	var stats domain.MergeStats

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT id) FROM staging").Scan(&stats.Staged, &stats.Unique); err != nil {
		return stats, fmt.Errorf("counting staged rows: %w", err)
	}

	if err := tx.QueryRowContext(ctx, rankedStaging+`
		SELECT COUNT(*) FROM ranked
		WHERE rn = 1 AND id NOT IN (SELECT id FROM records)
	`).Scan(&stats.Inserted); err != nil {
		return stats, fmt.Errorf("counting inserts: %w", err)
	}

	if err := tx.QueryRowContext(ctx, rankedStaging+`
		SELECT COUNT(*) FROM ranked
		JOIN records ON records.id = ranked.id
		WHERE ranked.rn = 1
		  AND (ranked.updated_date, ranked.published_date) >= (records.updated_date, records.published_date)
	`).Scan(&stats.Updated); err != nil {
		return stats, fmt.Errorf("counting updates: %w", err)
	}
	stats.Skipped = stats.Unique - stats.Inserted - stats.Updated

	updates := make([]string, 0, len(domain.Columns)-1)
	for _, c := range domain.Columns[1:] {
		updates = append(updates, c+" = excluded."+c)
	}

	// The WHERE on the SELECT keeps the upsert clause unambiguous.
	if _, err := tx.ExecContext(ctx, rankedStaging+`
		INSERT INTO records (`+recordColumns+`)
		SELECT `+recordColumns+` FROM ranked WHERE rn = 1
		ON CONFLICT(id) DO UPDATE SET `+strings.Join(updates, ", ")+`
		WHERE (excluded.updated_date, excluded.published_date) >= (records.updated_date, records.published_date)
	`); err != nil {
		return domain.MergeStats{}, fmt.Errorf("merging staged rows: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM staging"); err != nil {
		return domain.MergeStats{}, fmt.Errorf("clearing staging: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.MergeStats{}, fmt.Errorf("committing merge: %w", err)
	}
	return stats, nil
}

// Get retrieves a reconciled record by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM records WHERE id = ?", id)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Records returns every reconciled record ordered by id.
func (s *Store) Records(ctx context.Context) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+" FROM records ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// Staged returns the number of rows awaiting reconciliation.
func (s *Store) Staged(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM staging").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting staged rows: %w", err)
	}
	return n, nil
}

// ==================== Helpers ====================

type scanner interface {
	Scan(dest ...any) error
}

// recordArgs flattens a record in Columns order. Lists are stored as JSON.
func recordArgs(r *domain.Record) ([]any, error) {
	products, err := marshalList(r.ImpactedProducts)
	if err != nil {
		return nil, fmt.Errorf("marshalling products: %w", err)
	}
	versions, err := marshalList(r.VulnerableVersions)
	if err != nil {
		return nil, fmt.Errorf("marshalling versions: %w", err)
	}

	return []any{
		r.ID,
		r.PublishedDate,
		r.UpdatedDate,
		boolToInt(r.KnownExploited),
		r.KnownExploitedDate,
		r.CVSSVersion,
		r.BaseScore,
		r.BaseSeverity,
		r.AttackVector,
		r.AttackComplexity,
		r.PrivilegesRequired,
		r.UserInteraction,
		r.Scope,
		r.ConfidentialityImpact,
		r.IntegrityImpact,
		r.AvailabilityImpact,
		r.SSVCTimestamp,
		r.SSVCExploitation,
		r.SSVCAutomatable,
		r.SSVCTechnicalImpact,
		r.SSVCDecision,
		r.ImpactedVendor,
		products,
		versions,
		r.CWENumber,
		r.CWEDescription,
	}, nil
}

// scanRecord scans one row selected with recordColumns.
func scanRecord(row scanner) (*domain.Record, error) {
	var (
		r                  domain.Record
		knownExploited     int
		products, versions string
	)

	err := row.Scan(
		&r.ID,
		&r.PublishedDate,
		&r.UpdatedDate,
		&knownExploited,
		&r.KnownExploitedDate,
		&r.CVSSVersion,
		&r.BaseScore,
		&r.BaseSeverity,
		&r.AttackVector,
		&r.AttackComplexity,
		&r.PrivilegesRequired,
		&r.UserInteraction,
		&r.Scope,
		&r.ConfidentialityImpact,
		&r.IntegrityImpact,
		&r.AvailabilityImpact,
		&r.SSVCTimestamp,
		&r.SSVCExploitation,
		&r.SSVCAutomatable,
		&r.SSVCTechnicalImpact,
		&r.SSVCDecision,
		&r.ImpactedVendor,
		&products,
		&versions,
		&r.CWENumber,
		&r.CWEDescription,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	r.KnownExploited = knownExploited == 1
	if r.ImpactedProducts, err = unmarshalList(products); err != nil {
		return nil, fmt.Errorf("unmarshalling products: %w", err)
	}
	if r.VulnerableVersions, err = unmarshalList(versions); err != nil {
		return nil, fmt.Errorf("unmarshalling versions: %w", err)
	}
	return &r, nil
}

func marshalList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalList(s string) ([]string, error) {
	out := []string{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// boolToInt converts a bool to 1 (true) or 0 (false).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
