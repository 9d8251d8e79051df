package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"onboarding-forms/internal/formschema"
	"onboarding-forms/internal/ledger"
)

// MemoryStore is the mock-mode store. Documents are cloned on the way in
// and out so callers never share state with it.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]*formschema.FormConfiguration
	versions map[string][]formschema.VersionEntry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]*formschema.FormConfiguration),
		versions: make(map[string][]formschema.VersionEntry),
	}
}

// LoadMemoryStore seeds a store from <productId>.json files in dir. A
// document with blocking structural errors fails the load.
func LoadMemoryStore(dir string) (*MemoryStore, error) {
	m := NewMemoryStore()
	if dir == "" {
		return m, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list mock data: %w", err)
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		cfg, report, err := formschema.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		if report.HasErrors() {
			return nil, fmt.Errorf("failed to load %s: %w", path, report.Err())
		}
		productID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		m.docs[productID] = cfg
	}
	return m, nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) GetDocument(_ context.Context, productID string) (*formschema.FormConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[productID]
	if !ok {
		return nil, fmt.Errorf("form configuration for %s: %w", productID, ErrNotFound)
	}
	return doc.Clone(), nil
}

func (m *MemoryStore) UpsertDocument(_ context.Context, productID string, doc *formschema.FormConfiguration) error {
	if doc == nil {
		return fmt.Errorf("cannot store a nil form configuration")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[productID] = doc.Clone()
	return nil
}

func (m *MemoryStore) ListProductIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) LatestVersionNumber(_ context.Context, productID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	highest := 0
	for _, e := range m.versions[productID] {
		if e.VersionNumber > highest {
			highest = e.VersionNumber
		}
	}
	return highest, nil
}

func (m *MemoryStore) AppendVersion(_ context.Context, entry formschema.VersionEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.versions[entry.ProductID] {
		if e.VersionNumber == entry.VersionNumber {
			return fmt.Errorf("version %d for %s: %w", entry.VersionNumber, entry.ProductID, ledger.ErrVersionConflict)
		}
	}
	entry.Snapshot = entry.Snapshot.Clone()
	m.versions[entry.ProductID] = append(m.versions[entry.ProductID], entry)
	return nil
}

func (m *MemoryStore) ListVersions(_ context.Context, productID string) ([]formschema.VersionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.versions[productID]
	out := make([]formschema.VersionEntry, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		e := stored[i]
		e.Snapshot = e.Snapshot.Clone()
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

func (m *MemoryStore) GetVersion(_ context.Context, productID string, versionNumber int) (formschema.VersionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.versions[productID] {
		if e.VersionNumber == versionNumber {
			e.Snapshot = e.Snapshot.Clone()
			return e, nil
		}
	}
	return formschema.VersionEntry{}, fmt.Errorf("version %d for %s: %w", versionNumber, productID, ErrNotFound)
}

// InitDB is a no-op for the in-memory store.
func (m *MemoryStore) InitDB(context.Context) error { return nil }
