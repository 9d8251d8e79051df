package datastore

import (
	"context"

	"onboarding-forms/internal/formschema"
	"onboarding-forms/internal/ledger"
	"onboarding-forms/internal/store"
)

// DataStore defines the persistence operations the form service needs.
// It is implemented by both the PostgreSQL store and the in-memory mock store.
type DataStore interface {
	// Lifecycle
	Close() error
	InitDB(ctx context.Context) error

	// Live documents
	GetDocument(ctx context.Context, productID string) (*formschema.FormConfiguration, error)
	UpsertDocument(ctx context.Context, productID string, doc *formschema.FormConfiguration) error
	ListProductIDs(ctx context.Context) ([]string, error)

	// Version history
	ledger.VersionStore
}

// Type represents the type of data store to use
type Type string

const (
	// PostgreSQLStore uses real PostgreSQL database
	PostgreSQLStore Type = "postgresql"
	// MockStore keeps documents in memory, seeded from JSON files
	MockStore Type = "mock"
)

// Config holds configuration for data store creation
type Config struct {
	Type             Type
	ConnectionString string
	MockDataPath     string
}

// NewDataStore creates a new data store based on configuration
func NewDataStore(config Config) (DataStore, error) {
	switch config.Type {
	case PostgreSQLStore:
		s, err := store.NewStore(config.ConnectionString)
		if err != nil {
			return nil, err
		}
		return s, nil
	case MockStore:
		m, err := store.LoadMemoryStore(config.MockDataPath)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, &UnsupportedStoreTypeError{Type: string(config.Type)}
	}
}

// UnsupportedStoreTypeError is returned when an unsupported store type is requested
type UnsupportedStoreTypeError struct {
	Type string
}

func (e *UnsupportedStoreTypeError) Error() string {
	return "unsupported store type: " + e.Type
}

var (
	_ DataStore = (*store.Store)(nil)
	_ DataStore = (*store.MemoryStore)(nil)
)
