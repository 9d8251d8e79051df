package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"onboarding-forms/internal/formschema"
	"onboarding-forms/internal/ledger"
)

// ErrNotFound is returned when a product has no live document or the
// requested version does not exist.
var ErrNotFound = errors.New("not found")

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

//go:embed schema.sql
var schemaSQL string

// Store keeps live form configurations and their version history in
// PostgreSQL.
type Store struct {
	db *sqlx.DB
}

// NewStore opens and pings a PostgreSQL connection.
func NewStore(connString string) (*Store, error) {
	db, err := sqlx.Connect("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromDB constructs a Store from an existing *sql.DB. Useful for tests.
func NewStoreFromDB(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitDB creates the schema and tables if they do not exist.
func (s *Store) InitDB(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute init SQL: %w", err)
	}
	return nil
}

// GetDocument returns the live document of a product.
func (s *Store) GetDocument(ctx context.Context, productID string) (*formschema.FormConfiguration, error) {
	var doc JSONBDocument
	err := s.db.GetContext(ctx, &doc,
		`SELECT document FROM "onboarding-forms".form_configurations WHERE product_id = $1`,
		productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("form configuration for %s: %w", productID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get form configuration for %s: %w", productID, err)
	}
	return doc.FormConfiguration, nil
}

// UpsertDocument replaces the live document of a product.
func (s *Store) UpsertDocument(ctx context.Context, productID string, doc *formschema.FormConfiguration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO "onboarding-forms".form_configurations (product_id, document, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (product_id) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`,
		productID, JSONBDocument{doc})
	if err != nil {
		return fmt.Errorf("failed to upsert form configuration for %s: %w", productID, err)
	}
	return nil
}

// ListProductIDs returns every product with a live document, sorted.
func (s *Store) ListProductIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		`SELECT product_id FROM "onboarding-forms".form_configurations ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return ids, nil
}

// LatestVersionNumber returns the highest version number, or 0.
func (s *Store) LatestVersionNumber(ctx context.Context, productID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COALESCE(MAX(version_number), 0) FROM "onboarding-forms".form_configuration_versions WHERE product_id = $1`,
		productID)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest version for %s: %w", productID, err)
	}
	return n, nil
}

// AppendVersion inserts a version row. A duplicate version number maps to
// ledger.ErrVersionConflict.
func (s *Store) AppendVersion(ctx context.Context, entry formschema.VersionEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO "onboarding-forms".form_configuration_versions
		 (version_id, product_id, version_number, snapshot, changed_by, change_notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.VersionID, entry.ProductID, entry.VersionNumber, JSONBDocument{entry.Snapshot},
		entry.ChangedBy, entry.ChangeNotes, entry.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("version %d for %s: %w", entry.VersionNumber, entry.ProductID, ledger.ErrVersionConflict)
		}
		return fmt.Errorf("failed to insert version: %w", err)
	}
	return nil
}

type versionRow struct {
	VersionID     string        `db:"version_id"`
	ProductID     string        `db:"product_id"`
	VersionNumber int           `db:"version_number"`
	Snapshot      JSONBDocument `db:"snapshot"`
	ChangedBy     string        `db:"changed_by"`
	ChangeNotes   string        `db:"change_notes"`
	CreatedAt     time.Time     `db:"created_at"`
}

func (r versionRow) entry() formschema.VersionEntry {
	return formschema.VersionEntry{
		ProductID:     r.ProductID,
		VersionNumber: r.VersionNumber,
		VersionID:     r.VersionID,
		Snapshot:      r.Snapshot.FormConfiguration,
		ChangedBy:     r.ChangedBy,
		ChangeNotes:   r.ChangeNotes,
		CreatedAt:     r.CreatedAt,
	}
}

const versionColumns = `version_id::text AS version_id, product_id, version_number, snapshot, changed_by, change_notes, created_at`

// ListVersions returns a product's history newest first.
func (s *Store) ListVersions(ctx context.Context, productID string) ([]formschema.VersionEntry, error) {
	var rows []versionRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+versionColumns+`
		 FROM "onboarding-forms".form_configuration_versions
		 WHERE product_id = $1
		 ORDER BY version_number DESC, created_at DESC`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query version history: %w", err)
	}
	history := make([]formschema.VersionEntry, 0, len(rows))
	for _, r := range rows {
		history = append(history, r.entry())
	}
	return history, nil
}

// GetVersion returns one version.
func (s *Store) GetVersion(ctx context.Context, productID string, versionNumber int) (formschema.VersionEntry, error) {
	var row versionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+versionColumns+`
		 FROM "onboarding-forms".form_configuration_versions
		 WHERE product_id = $1 AND version_number = $2
		 LIMIT 1`,
		productID, versionNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return formschema.VersionEntry{}, fmt.Errorf("version %d for %s: %w", versionNumber, productID, ErrNotFound)
	}
	if err != nil {
		return formschema.VersionEntry{}, fmt.Errorf("failed to get version: %w", err)
	}
	return row.entry(), nil
}
