// Package migration moves form configurations between the JSON mock data
// directory and a live store, so a mock-mode setup can be promoted to
// PostgreSQL and a database can be snapshotted back into mock files.
package migration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"onboarding-forms/internal/formschema"
	"onboarding-forms/internal/formservice"
)

// MigrationAuthor is recorded on versions created by a migration.
const MigrationAuthor = "migration"

// Source lists and reads live documents, e.g. a store.MemoryStore loaded
// from mock files.
type Source interface {
	ListProductIDs(ctx context.Context) ([]string, error)
	GetDocument(ctx context.Context, productID string) (*formschema.FormConfiguration, error)
}

// Target is where migrated documents are saved.
type Target interface {
	Load(ctx context.Context, productID string) (formservice.Loaded, error)
	Save(ctx context.Context, productID string, doc *formschema.FormConfiguration, author, notes string) (formservice.SaveResult, error)
}

// Exporter produces the export JSON of every product.
type Exporter interface {
	Products(ctx context.Context) ([]string, error)
	Export(ctx context.Context, productID, by string) ([]byte, error)
}

// MigrationResult holds the results of one migration run.
type MigrationResult struct {
	Success  bool     `json:"success"`
	Migrated []string `json:"migrated"`
	Skipped  []string `json:"skipped"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// MockToStoreMigrator copies mock documents into a target that has no
// history for them yet.
type MockToStoreMigrator struct {
	src    Source
	dst    Target
	dryRun bool
	log    zerolog.Logger
}

// NewMockToStoreMigrator creates a new migrator instance
func NewMockToStoreMigrator(src Source, dst Target, dryRun bool, log zerolog.Logger) *MockToStoreMigrator {
	return &MockToStoreMigrator{
		src:    src,
		dst:    dst,
		dryRun: dryRun,
		log:    log.With().Str("component", "migration").Logger(),
	}
}

// Run migrates every product of the source. A product that already has
// versions in the target is skipped, never overwritten. A failure on one
// product is recorded and the run continues.
func (m *MockToStoreMigrator) Run(ctx context.Context) (*MigrationResult, error) {
	result := &MigrationResult{
		Success:  true,
		Migrated: []string{},
		Skipped:  []string{},
		Errors:   []string{},
		Warnings: []string{},
	}

	ids, err := m.src.ListProductIDs(ctx)
	if err != nil {
		result.Success = false
		return result, fmt.Errorf("failed to list mock products: %w", err)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			result.Success = false
			return result, err
		}
		existing, err := m.dst.Load(ctx, id)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
			result.Success = false
			continue
		}
		if existing.Version > 0 {
			result.Skipped = append(result.Skipped, id)
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s already has %d versions; left unchanged", id, existing.Version))
			continue
		}

		doc, err := m.src.GetDocument(ctx, id)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
			result.Success = false
			continue
		}
		if m.dryRun {
			result.Migrated = append(result.Migrated, id)
			continue
		}
		res, err := m.dst.Save(ctx, id, doc, MigrationAuthor, "migrated from mock data")
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
			result.Success = false
			continue
		}
		m.log.Info().Str("product_id", id).Int("version", res.Entry.VersionNumber).Msg("migrated mock document")
		result.Migrated = append(result.Migrated, id)
	}
	return result, nil
}

// ExportMockData writes every product's export JSON to dir as
// <productId>.json, the layout the mock store loads. It returns the number
// of files written.
func ExportMockData(ctx context.Context, src Exporter, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	ids, err := src.Products(ctx)
	if err != nil {
		return 0, err
	}
	written := 0
	for _, id := range ids {
		data, err := src.Export(ctx, id, MigrationAuthor)
		if err != nil {
			return written, fmt.Errorf("failed to export %s: %w", id, err)
		}
		path := filepath.Join(dir, id+".json")
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written++
	}
	return written, nil
}
