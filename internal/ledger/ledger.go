// Package ledger keeps the append-only version history of each product's
// form configuration.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"onboarding-forms/internal/formschema"
)

// ErrVersionConflict is returned when a (productId, versionNumber) pair is
// already taken, which means two saves raced for the same product.
var ErrVersionConflict = errors.New("version number already exists")

// VersionStore persists version entries. AppendVersion must never overwrite
// and must return an error wrapping ErrVersionConflict for a duplicate
// version number. ListVersions returns newest first.
type VersionStore interface {
	LatestVersionNumber(ctx context.Context, productID string) (int, error)
	AppendVersion(ctx context.Context, entry formschema.VersionEntry) error
	ListVersions(ctx context.Context, productID string) ([]formschema.VersionEntry, error)
	GetVersion(ctx context.Context, productID string, versionNumber int) (formschema.VersionEntry, error)
}

// Ledger numbers, stamps and appends snapshots.
type Ledger struct {
	store VersionStore
	log   zerolog.Logger
	now   func() time.Time
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger over store.
func New(store VersionStore, log zerolog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		log:   log.With().Str("component", "ledger").Logger(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NextVersionNumber is 1 + the highest existing version, or 1.
func (l *Ledger) NextVersionNumber(ctx context.Context, productID string) (int, error) {
	latest, err := l.store.LatestVersionNumber(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("failed to read latest version for %s: %w", productID, err)
	}
	return latest + 1, nil
}

// Commit appends a new version holding a copy of snapshot with its metadata
// stamped. The returned entry's snapshot is what should become the live
// document. A conflicting version number is logged and returned as is; the
// ledger does not retry.
func (l *Ledger) Commit(ctx context.Context, productID string, snapshot *formschema.FormConfiguration, author, notes string) (formschema.VersionEntry, error) {
	next, err := l.NextVersionNumber(ctx, productID)
	if err != nil {
		return formschema.VersionEntry{}, err
	}

	now := l.now().UTC()
	doc := snapshot.Clone()
	formschema.Stamp(doc, next, author, notes, now)

	entry := formschema.VersionEntry{
		ProductID:     productID,
		VersionNumber: next,
		VersionID:     uuid.New().String(),
		Snapshot:      doc,
		ChangedBy:     author,
		ChangeNotes:   notes,
		CreatedAt:     now,
	}
	if err := l.store.AppendVersion(ctx, entry); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			l.log.Warn().
				Str("product_id", productID).
				Int("version", next).
				Str("author", author).
				Msg("concurrent write race: version number already taken")
		}
		return formschema.VersionEntry{}, fmt.Errorf("failed to commit version %d for %s: %w", next, productID, err)
	}

	l.log.Info().
		Str("product_id", productID).
		Int("version", next).
		Str("version_id", entry.VersionID).
		Str("author", author).
		Msg("committed form configuration version")
	return entry, nil
}

// History returns every version newest first. Numbering anomalies are
// logged as data-integrity warnings and left in place.
func (l *Ledger) History(ctx context.Context, productID string) ([]formschema.VersionEntry, error) {
	entries, err := l.store.ListVersions(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions for %s: %w", productID, err)
	}
	for _, a := range CheckIntegrity(entries) {
		l.log.Warn().
			Str("product_id", a.ProductID).
			Str("anomaly", string(a.Kind)).
			Int("version", a.VersionNumber).
			Msg(a.Detail)
	}
	return entries, nil
}

// Get returns one version.
func (l *Ledger) Get(ctx context.Context, productID string, versionNumber int) (formschema.VersionEntry, error) {
	entry, err := l.store.GetVersion(ctx, productID, versionNumber)
	if err != nil {
		return formschema.VersionEntry{}, fmt.Errorf("failed to get version %d for %s: %w", versionNumber, productID, err)
	}
	return entry, nil
}

// Restore returns a copy of the entry's snapshot. It does not commit; the
// restored document becomes a new version only when saved.
func Restore(entry formschema.VersionEntry) *formschema.FormConfiguration {
	return entry.Snapshot.Clone()
}
