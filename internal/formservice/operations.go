package formservice

import (
	"context"
	"fmt"

	"onboarding-forms/internal/formschema"
	"onboarding-forms/internal/importer"
	"onboarding-forms/internal/ledger"
	"onboarding-forms/internal/patch"
	"onboarding-forms/internal/resolver"
	"onboarding-forms/internal/risk"
	"onboarding-forms/internal/rulecontext"
	"onboarding-forms/internal/session"
	"onboarding-forms/internal/templates"
)

// Import replaces the live document with an uploaded one. Parse failures and
// structural errors are rejections; the live document is not touched.
func (s *Service) Import(ctx context.Context, productID string, format importer.Format, data []byte, author, notes string) (SaveResult, error) {
	doc, report, err := importer.Document(format, data)
	if err != nil {
		return SaveResult{Report: report}, &patch.RejectedError{Kind: "document", Reason: err.Error()}
	}
	if report.HasErrors() {
		return SaveResult{Report: report}, &patch.RejectedError{Kind: "document", Reason: "document has structural errors", Issues: report.Errors()}
	}
	return s.edit(ctx, productID, author, notes, func(current *formschema.FormConfiguration) (*formschema.FormConfiguration, error) {
		next, _, err := patch.ReplaceWholeDocument(current, doc)
		return next, err
	})
}

// Export returns the live document as indented JSON stamped with its
// version and the exporting user.
func (s *Service) Export(ctx context.Context, productID, by string) ([]byte, error) {
	loaded, err := s.Load(ctx, productID)
	if err != nil {
		return nil, err
	}
	data, err := formschema.Export(loaded.Document, loaded.Version, by, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", productID, err)
	}
	return data, nil
}

// SnippetResult is the outcome of a snippet applied to one product.
type SnippetResult struct {
	Outcome patch.Outcome `json:"outcome"`
	SaveResult
}

// ApplySnippet upserts a snippet into one product's document and saves it.
func (s *Service) ApplySnippet(ctx context.Context, productID string, snippet patch.Snippet, author string) (SnippetResult, error) {
	var outcome patch.Outcome
	notes := fmt.Sprintf("applied %s snippet", snippet.Kind)
	res, err := s.edit(ctx, productID, author, notes, func(current *formschema.FormConfiguration) (*formschema.FormConfiguration, error) {
		next, out, err := patch.ApplySnippet(current, snippet)
		outcome = out
		return next, err
	})
	return SnippetResult{Outcome: outcome, SaveResult: res}, err
}

// Reorder moves one item of a collection and saves the result.
func (s *Service) Reorder(ctx context.Context, productID string, c patch.Collection, from, to int, author string) (SaveResult, error) {
	notes := fmt.Sprintf("reordered %s", c)
	return s.edit(ctx, productID, author, notes, func(current *formschema.FormConfiguration) (*formschema.FormConfiguration, error) {
		return patch.Reorder(current, c, from, to)
	})
}

// Promote moves a section field into validationFields and saves the result.
func (s *Service) Promote(ctx context.Context, productID, fieldID, author string) (SaveResult, error) {
	return s.Edit(ctx, productID, patch.Edit{Op: patch.OpPromote, ID: fieldID}, author)
}

// Edit applies one structural edit and saves the result.
func (s *Service) Edit(ctx context.Context, productID string, e patch.Edit, author string) (SaveResult, error) {
	return s.edit(ctx, productID, author, e.Describe(), func(current *formschema.FormConfiguration) (*formschema.FormConfiguration, error) {
		return patch.ApplyEdit(current, e)
	})
}

// Dedupe saves the live document with validation/section duplicates removed.
// Nothing is written when there is nothing to remove.
func (s *Service) Dedupe(ctx context.Context, productID, author string) (patch.DedupeReport, *SaveResult, error) {
	var (
		drep  patch.DedupeReport
		saved *SaveResult
	)
	err := s.withLock(ctx, productID, func() error {
		current, err := s.Load(ctx, productID)
		if err != nil {
			return err
		}
		_, drep = patch.DedupeWithReport(current.Document)
		if !drep.Changed() {
			return nil
		}
		res, err := s.saveLocked(ctx, productID, current.Document, author, "removed duplicate fields")
		if err != nil {
			return err
		}
		saved = &res
		return nil
	})
	return drep, saved, err
}

// ApplyTemplate replaces the live document with a template and saves it.
func (s *Service) ApplyTemplate(ctx context.Context, productID, name, author string) (SaveResult, error) {
	if s.templates == nil {
		return SaveResult{}, fmt.Errorf("no template library configured")
	}
	return s.edit(ctx, productID, author, "loaded template "+name, func(current *formschema.FormConfiguration) (*formschema.FormConfiguration, error) {
		next, _, err := s.templates.Apply(current, name)
		return next, err
	})
}

// Templates lists the configured templates.
func (s *Service) Templates() []templates.Template {
	if s.templates == nil {
		return nil
	}
	return s.templates.List()
}

// Health checks the store and, when the lock is shared, the lock backend.
func (s *Service) Health(ctx context.Context) error {
	if _, err := s.store.ListProductIDs(ctx); err != nil {
		return fmt.Errorf("store unavailable: %w", err)
	}
	if p, ok := s.locker.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("lock backend unavailable: %w", err)
		}
	}
	return nil
}

// Products lists the products that have a saved document.
func (s *Service) Products(ctx context.Context) ([]string, error) {
	ids, err := s.store.ListProductIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return ids, nil
}

// History returns a product's versions newest first.
func (s *Service) History(ctx context.Context, productID string) ([]formschema.VersionEntry, error) {
	return s.ledger.History(ctx, productID)
}

// Restore returns a copy of an old version. With save set the copy is
// committed as a new version; the old one is never rewritten.
func (s *Service) Restore(ctx context.Context, productID string, version int, save bool, author string) (*formschema.FormConfiguration, *SaveResult, error) {
	entry, err := s.ledger.Get(ctx, productID, version)
	if err != nil {
		return nil, nil, err
	}
	doc := ledger.Restore(entry)
	if !save {
		return doc, nil, nil
	}
	res, err := s.Save(ctx, productID, doc, author, fmt.Sprintf("restored from version %d", version))
	if err != nil {
		return doc, nil, err
	}
	return res.Entry.Snapshot, &res, nil
}

// Resolve computes visibility and requirements of the live document for a
// stage and a set of values.
func (s *Service) Resolve(ctx context.Context, productID string, stage formschema.Stage, values resolver.Values) (resolver.Result, error) {
	loaded, err := s.Load(ctx, productID)
	if err != nil {
		return resolver.Result{}, err
	}
	return resolver.Resolve(loaded.Document, stage, values), nil
}

// RuleContext builds the risk-engine context from submitted values.
func (s *Service) RuleContext(ctx context.Context, productID string, values map[string]any) (map[string]any, []rulecontext.Assignment, error) {
	loaded, err := s.Load(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	return rulecontext.Extract(loaded.Document, values), rulecontext.Explain(loaded.Document, values), nil
}

// Assessment is a rule context and the score it received.
type Assessment struct {
	Context     map[string]any           `json:"context"`
	Assignments []rulecontext.Assignment `json:"assignments"`
	Risk        risk.Assessment          `json:"risk"`
}

// Assess builds the rule context and sends it to the risk scorer.
func (s *Service) Assess(ctx context.Context, productID string, values map[string]any) (Assessment, error) {
	rc, assignments, err := s.RuleContext(ctx, productID, values)
	if err != nil {
		return Assessment{}, err
	}
	a, err := s.scorer.Assess(ctx, rc)
	if err != nil {
		return Assessment{Context: rc, Assignments: assignments}, fmt.Errorf("failed to assess %s: %w", productID, err)
	}
	return Assessment{Context: rc, Assignments: assignments, Risk: a}, nil
}

// OpenSession starts an editor session on the live document.
func (s *Service) OpenSession(ctx context.Context, m *session.Manager, productID string) (*session.EditorSession, error) {
	loaded, err := s.Load(ctx, productID)
	if err != nil {
		return nil, err
	}
	return m.Open(productID, loaded.Document, loaded.Version), nil
}

// SaveSession saves an editor session's working document. The last write
// wins; saving over a newer version is logged.
func (s *Service) SaveSession(ctx context.Context, es *session.EditorSession, author, notes string) (SaveResult, error) {
	st := es.State()
	latest, err := s.store.LatestVersionNumber(ctx, st.ProductID)
	if err == nil && latest > st.BaseVersion {
		s.log.Warn().
			Str("product_id", st.ProductID).
			Str("session_id", st.ID).
			Int("base_version", st.BaseVersion).
			Int("latest_version", latest).
			Msg("saving editor session over a newer version")
	}
	res, err := s.Save(ctx, st.ProductID, st.Document, author, notes)
	if err != nil {
		return res, err
	}
	es.MarkSaved(res.Entry.VersionNumber, res.Entry.Snapshot)
	return res, nil
}
