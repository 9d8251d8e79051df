// Package formservice is the application layer over the form engine. Every
// write loads the live document under a per-product lock, runs the edit
// through the patch engine, removes duplicate fields, validates, appends a
// ledger version and only then replaces the live document.
package formservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"onboarding-forms/internal/formschema"
	"onboarding-forms/internal/ledger"
	"onboarding-forms/internal/lock"
	"onboarding-forms/internal/patch"
	"onboarding-forms/internal/risk"
	"onboarding-forms/internal/store"
	"onboarding-forms/internal/templates"
)

// DocumentStore keeps the live document of each product.
type DocumentStore interface {
	GetDocument(ctx context.Context, productID string) (*formschema.FormConfiguration, error)
	UpsertDocument(ctx context.Context, productID string, doc *formschema.FormConfiguration) error
	ListProductIDs(ctx context.Context) ([]string, error)
}

// Store is the persistence the service needs.
type Store interface {
	DocumentStore
	ledger.VersionStore
}

// Service runs form configuration operations.
type Service struct {
	store     Store
	ledger    *ledger.Ledger
	locker    lock.Locker
	scorer    risk.Scorer
	templates *templates.Library
	workers   int
	now       func() time.Time
	log       zerolog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithLocker replaces the in-process lock, e.g. with a RedisLocker.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithScorer sets the risk scorer. Without one, risk.Static is used.
func WithScorer(sc risk.Scorer) Option {
	return func(s *Service) { s.scorer = sc }
}

// WithTemplates sets the template library.
func WithTemplates(lib *templates.Library) Option {
	return func(s *Service) { s.templates = lib }
}

// WithWorkers bounds how many products a broadcast writes concurrently.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithClock fixes the clock used for stamping.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds a service over st.
func New(st Store, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   st,
		locker:  lock.NewKeyedMutex(),
		scorer:  risk.Static{},
		workers: 4,
		now:     time.Now,
		log:     log.With().Str("component", "formservice").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ledger = ledger.New(st, log, ledger.WithClock(s.now))
	return s
}

// Loaded is a live document and the version it was last saved as.
type Loaded struct {
	Document *formschema.FormConfiguration `json:"document"`
	Version  int                           `json:"version"`
}

// Load returns the live document. A product seen for the first time gets an
// empty document; nothing is persisted until it is saved.
func (s *Service) Load(ctx context.Context, productID string) (Loaded, error) {
	doc, err := s.store.GetDocument(ctx, productID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		doc = formschema.New()
	case err != nil:
		return Loaded{}, fmt.Errorf("failed to load form configuration for %s: %w", productID, err)
	}
	latest, err := s.store.LatestVersionNumber(ctx, productID)
	if err != nil {
		return Loaded{}, fmt.Errorf("failed to load form configuration for %s: %w", productID, err)
	}
	return Loaded{Document: doc, Version: latest}, nil
}

// SaveResult describes one committed write.
type SaveResult struct {
	Entry  formschema.VersionEntry `json:"entry"`
	Report formschema.Report       `json:"report"`
	Dedupe patch.DedupeReport      `json:"dedupe"`
}

// Save dedupes, validates and commits doc as the next version of productID.
// Blocking structural errors return a *formschema.ValidationError and
// nothing is written.
func (s *Service) Save(ctx context.Context, productID string, doc *formschema.FormConfiguration, author, notes string) (SaveResult, error) {
	var res SaveResult
	err := s.withLock(ctx, productID, func() error {
		var err error
		res, err = s.saveLocked(ctx, productID, doc, author, notes)
		return err
	})
	return res, err
}

func (s *Service) saveLocked(ctx context.Context, productID string, doc *formschema.FormConfiguration, author, notes string) (SaveResult, error) {
	deduped, drep := patch.DedupeWithReport(doc)
	if drep.Changed() {
		s.log.Info().
			Str("product_id", productID).
			Strs("removed_fields", drep.RemovedFields).
			Strs("dropped_sections", drep.DroppedSections).
			Msg("removed section fields duplicated in validationFields")
	}

	report := formschema.Validate(deduped)
	if err := report.Err(); err != nil {
		return SaveResult{Report: report, Dedupe: drep}, err
	}

	entry, err := s.ledger.Commit(ctx, productID, deduped, author, notes)
	if err != nil {
		return SaveResult{Report: report, Dedupe: drep}, err
	}
	if err := s.store.UpsertDocument(ctx, productID, entry.Snapshot); err != nil {
		s.log.Error().Err(err).
			Str("product_id", productID).
			Int("version", entry.VersionNumber).
			Msg("version committed but live document was not updated")
		return SaveResult{Entry: entry, Report: report, Dedupe: drep}, fmt.Errorf("failed to update live document for %s: %w", productID, err)
	}
	return SaveResult{Entry: entry, Report: report, Dedupe: drep}, nil
}

// edit runs fn on the live document under the product lock and saves the
// result. A failing fn leaves the live document untouched.
func (s *Service) edit(ctx context.Context, productID, author, notes string, fn func(*formschema.FormConfiguration) (*formschema.FormConfiguration, error)) (SaveResult, error) {
	var res SaveResult
	err := s.withLock(ctx, productID, func() error {
		current, err := s.Load(ctx, productID)
		if err != nil {
			return err
		}
		next, err := fn(current.Document)
		if err != nil {
			return err
		}
		res, err = s.saveLocked(ctx, productID, next, author, notes)
		return err
	})
	return res, err
}

func (s *Service) withLock(ctx context.Context, productID string, fn func() error) error {
	release, err := s.locker.Lock(ctx, "form:"+productID)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", productID, err)
	}
	defer release()
	return fn()
}
