package formservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding-forms/internal/formschema"
	"onboarding-forms/internal/importer"
	"onboarding-forms/internal/patch"
	"onboarding-forms/internal/resolver"
	"onboarding-forms/internal/risk"
	"onboarding-forms/internal/session"
	"onboarding-forms/internal/store"
	"onboarding-forms/internal/templates"
)

var fixedNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func newService(t *testing.T, opts ...Option) (*Service, *store.MemoryStore) {
	t.Helper()
	m := store.NewMemoryStore()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(m, zerolog.Nop(), opts...), m
}

func kycDoc() *formschema.FormConfiguration {
	doc := formschema.New()
	doc.Sections = []formschema.Section{
		{ID: "applicant", SectionTitle: "Applicant", Fields: []formschema.Field{
			{ID: "full_name", FieldType: formschema.FieldText, Label: "Full Name", Required: true},
			{ID: "license_type", FieldType: formschema.FieldSelect, Label: "License Type", Options: []string{"Freezone", "Mainland"}},
			{ID: "passport_no", FieldType: formschema.FieldText, Label: "Passport Number", RequiredAtStage: []formschema.Stage{formschema.StageReview}},
		}},
	}
	doc.RuleContextMapping.Set("License Type", "locationType")
	return doc
}

func TestLoad_FirstAccessIsEmptyAndNotPersisted(t *testing.T) {
	svc, m := newService(t)
	ctx := context.Background()

	loaded, err := svc.Load(ctx, "PRD-NEW")
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Version)
	assert.Empty(t, loaded.Document.Sections)

	ids, _ := m.ListProductIDs(ctx)
	assert.Empty(t, ids)
}

func TestSave_CommitsThenReplacesLiveDocument(t *testing.T) {
	svc, m := newService(t)
	ctx := context.Background()

	res, err := svc.Save(ctx, "PRD-1", kycDoc(), "alice", "initial")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Entry.VersionNumber)

	live, err := m.GetDocument(ctx, "PRD-1")
	require.NoError(t, err)
	require.NotNil(t, live.Metadata)
	assert.Equal(t, 1, live.Metadata.Version)
	assert.Equal(t, "alice", live.Metadata.LastModifiedBy)
	assert.Equal(t, fixedNow, *live.Metadata.LastModifiedAt)

	res, err = svc.Save(ctx, "PRD-1", live, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Entry.VersionNumber)
	assert.Equal(t, "alice", res.Entry.Snapshot.Metadata.CreatedBy)

	loaded, _ := svc.Load(ctx, "PRD-1")
	assert.Equal(t, 2, loaded.Version)
}

func TestSave_BlockingErrorsWriteNothing(t *testing.T) {
	svc, m := newService(t)
	ctx := context.Background()

	doc := kycDoc()
	doc.Sections[0].Fields[1].Options = nil

	res, err := svc.Save(ctx, "PRD-1", doc, "alice", "")
	var verr *formschema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sections[0].fields[1].options", verr.Issues[0].Path)
	assert.True(t, res.Report.HasErrors())

	n, _ := m.LatestVersionNumber(ctx, "PRD-1")
	assert.Equal(t, 0, n)
	_, err = m.GetDocument(ctx, "PRD-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSave_Dedupes(t *testing.T) {
	svc, _ := newService(t)
	doc := kycDoc()
	doc.ValidationFields = append(doc.ValidationFields, formschema.Field{
		ID: "passport_no", FieldType: formschema.FieldText, Label: "Passport Number", Required: true,
	})

	res, err := svc.Save(context.Background(), "PRD-1", doc, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"passport_no"}, res.Dedupe.RemovedFields)
	locs := res.Entry.Snapshot.Index().Fields["passport_no"]
	require.Len(t, locs, 1)
	assert.Equal(t, formschema.InValidation, locs[0].Collection, "id remains as a validation field")
	assert.Len(t, res.Entry.Snapshot.Sections[0].Fields, 2)
}

func TestApplySnippet(t *testing.T) {
	svc, m := newService(t)
	ctx := context.Background()
	_, err := svc.Save(ctx, "PRD-1", kycDoc(), "alice", "")
	require.NoError(t, err)

	res, err := svc.ApplySnippet(ctx, "PRD-1", patch.Snippet{
		Kind:     patch.KindField,
		Fragment: json.RawMessage(`{"id":"email","fieldType":"email","label":"Email"}`),
	}, "bob")
	require.NoError(t, err)
	assert.Equal(t, "applicant", res.Outcome.SectionID)
	assert.Equal(t, 2, res.Entry.VersionNumber)
	assert.Equal(t, "applied field snippet", res.Entry.ChangeNotes)

	_, err = svc.ApplySnippet(ctx, "PRD-1", patch.Snippet{
		Kind:     patch.KindField,
		Fragment: json.RawMessage(`{"id":"broken","fieldType":"radio","label":"Broken"}`),
	}, "bob")
	require.Error(t, err)
	assert.True(t, patch.IsRejected(err))

	n, _ := m.LatestVersionNumber(ctx, "PRD-1")
	assert.Equal(t, 2, n, "rejected snippet commits nothing")
	live, _ := m.GetDocument(ctx, "PRD-1")
	assert.Len(t, live.Sections[0].Fields, 4)
}

func TestApplySnippet_ConcurrentWritersAreSerialized(t *testing.T) {
	svc, m := newService(t)
	ctx := context.Background()
	_, err := svc.Save(ctx, "PRD-1", kycDoc(), "alice", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			frag := fmt.Sprintf(`{"id":"extra_%d","fieldType":"text","label":"Extra %d"}`, i, i)
			_, err := svc.ApplySnippet(ctx, "PRD-1", patch.Snippet{Kind: patch.KindField, Fragment: json.RawMessage(frag)}, "editor")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, _ := m.LatestVersionNumber(ctx, "PRD-1")
	assert.Equal(t, 11, n)
	live, _ := m.GetDocument(ctx, "PRD-1")
	assert.Len(t, live.Sections[0].Fields, 13, "no edit was lost")

	history, err := svc.History(ctx, "PRD-1")
	require.NoError(t, err)
	assert.Equal(t, 11, history[0].VersionNumber)
}

func TestImportAndExport(t *testing.T) {
	svc, m := newService(t)
	ctx := context.Background()

	_, err := svc.Import(ctx, "PRD-1", importer.FormatJSON, []byte(`{"sections": [`), "alice", "")
	require.Error(t, err)
	assert.True(t, patch.IsRejected(err))
	_, err = m.GetDocument(ctx, "PRD-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	yamlDoc := "sections:\n  - id: s1\n    sectionTitle: One\n    fields:\n      - id: a\n        fieldType: text\n        label: A\n"
	res, err := svc.Import(ctx, "PRD-1", importer.FormatYAML, []byte(yamlDoc), "alice", "from yaml")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Entry.VersionNumber)

	out, err := svc.Export(ctx, "PRD-1", "auditor")
	require.NoError(t, err)
	cfg, report, err := formschema.Decode(out)
	require.NoError(t, err)
	assert.False(t, report.HasErrors())
	assert.Equal(t, 1, cfg.Metadata.Version)
	assert.Equal(t, "auditor", cfg.Metadata.LastModifiedBy)
	assert.True(t, bytes.Contains(out, []byte("\n  \"sections\"")), "export is indented")
}

func TestBroadcast(t *testing.T) {
	svc, m := newService(t, WithWorkers(2))
	ctx := context.Background()

	for _, id := range []string{"PRD-A", "PRD-B"} {
		_, err := svc.Save(ctx, id, kycDoc(), "alice", "")
		require.NoError(t, err)
	}
	other := formschema.New()
	other.Sections = []formschema.Section{{ID: "company", SectionTitle: "Company", Fields: []formschema.Field{}}}
	_, err := svc.Save(ctx, "PRD-C", other, "alice", "")
	require.NoError(t, err)

	report, err := svc.Broadcast(ctx, patch.Snippet{
		Kind:     patch.KindField,
		Fragment: json.RawMessage(`{"id":"tax_id","fieldType":"text","label":"Tax ID"}`),
		Target:   patch.Target{SectionID: "applicant"},
	}, "ops")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Applied)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 3)
	assert.Equal(t, "PRD-C", report.Results[2].ProductID)
	assert.Equal(t, StatusFailed, report.Results[2].Status)
	assert.Contains(t, report.Results[2].Error, "applicant")
	assert.Equal(t, 2, report.Results[0].Version)

	n, _ := m.LatestVersionNumber(ctx, "PRD-C")
	assert.Equal(t, 1, n, "a failed product is left as it was")
}

func TestBroadcast_CancelledSkipsEverything(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Save(context.Background(), "PRD-A", kycDoc(), "alice", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := svc.Broadcast(ctx, patch.Snippet{Kind: patch.KindSection, Fragment: json.RawMessage(`{"id":"x","sectionTitle":"X","fields":[]}`)}, "ops")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, StatusSkipped, report.Results[0].Status)
}

func TestReorderAndDedupe(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Save(ctx, "PRD-1", kycDoc(), "alice", "")
	require.NoError(t, err)

	res, err := svc.Reorder(ctx, "PRD-1", patch.Collection{Kind: patch.CollectionFields, ParentID: "applicant"}, 2, 0, "bob")
	require.NoError(t, err)
	assert.Equal(t, "passport_no", res.Entry.Snapshot.Sections[0].Fields[0].ID)

	_, err = svc.Reorder(ctx, "PRD-1", patch.Collection{Kind: patch.CollectionFields, ParentID: "applicant"}, 9, 0, "bob")
	assert.Error(t, err)

	drep, saved, err := svc.Dedupe(ctx, "PRD-1", "bob")
	require.NoError(t, err)
	assert.False(t, drep.Changed())
	assert.Nil(t, saved)
}

func TestRestore(t *testing.T) {
	svc, m := newService(t)
	ctx := context.Background()
	first, err := svc.Save(ctx, "PRD-1", kycDoc(), "alice", "")
	require.NoError(t, err)
	_, err = svc.ApplySnippet(ctx, "PRD-1", patch.Snippet{Kind: patch.KindSection, Fragment: json.RawMessage(`{"id":"more","sectionTitle":"More","fields":[]}`)}, "bob")
	require.NoError(t, err)

	doc, saved, err := svc.Restore(ctx, "PRD-1", 1, false, "carol")
	require.NoError(t, err)
	assert.Nil(t, saved)
	assert.Len(t, doc.Sections, 1)
	n, _ := m.LatestVersionNumber(ctx, "PRD-1")
	assert.Equal(t, 2, n, "restore without save is read-only")

	doc, saved, err = svc.Restore(ctx, "PRD-1", 1, true, "carol")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 3, saved.Entry.VersionNumber)
	assert.Equal(t, "restored from version 1", saved.Entry.ChangeNotes)
	assert.Len(t, doc.Sections, 1)

	v1, _ := m.GetVersion(ctx, "PRD-1", 1)
	assert.Equal(t, first.Entry.VersionID, v1.VersionID, "old versions are never rewritten")

	_, _, err = svc.Restore(ctx, "PRD-1", 42, false, "carol")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResolveRuleContextAssess(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Save(ctx, "PRD-1", kycDoc(), "alice", "")
	require.NoError(t, err)

	res, err := svc.Resolve(ctx, "PRD-1", formschema.StageReview, resolver.Values{})
	require.NoError(t, err)
	assert.Equal(t, []string{"full_name", "passport_no"}, res.RequiredIDs())

	values := map[string]any{"License Type": "Freezone", "full_name": "A. Person"}
	rc, assignments, err := svc.RuleContext(ctx, "PRD-1", values)
	require.NoError(t, err)
	assert.Equal(t, "Freezone", rc["locationType"])
	assert.NotEmpty(t, assignments)

	a, err := svc.Assess(ctx, "PRD-1", values)
	require.NoError(t, err)
	assert.Equal(t, "static", a.Risk.Scorer)
	assert.Equal(t, risk.LevelMedium, a.Risk.Level)
}

type failingScorer struct{}

func (failingScorer) Assess(context.Context, map[string]any) (risk.Assessment, error) {
	return risk.Assessment{}, errors.New("scorer unavailable")
}

func TestAssess_ScorerErrorKeepsContext(t *testing.T) {
	svc, _ := newService(t, WithScorer(failingScorer{}))
	a, err := svc.Assess(context.Background(), "PRD-1", map[string]any{"Nationality": "AE"})
	require.Error(t, err)
	assert.NotNil(t, a.Context)
}

func TestApplyTemplate(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.ApplyTemplate(context.Background(), "PRD-1", "corporate-account", "alice")
	assert.Error(t, err, "no library configured")
	assert.Nil(t, svc.Templates())

	lib, err := templates.Load("")
	require.NoError(t, err)
	svc, _ = newService(t, WithTemplates(lib))
	res, err := svc.ApplyTemplate(context.Background(), "PRD-1", "corporate-account", "alice")
	require.NoError(t, err)
	assert.Equal(t, "company", res.Entry.Snapshot.Sections[0].ID)
	assert.Equal(t, "loaded template corporate-account", res.Entry.ChangeNotes)
	assert.Len(t, svc.Templates(), 2)
}

func TestEditorSessionRoundTrip(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Save(ctx, "PRD-1", kycDoc(), "alice", "")
	require.NoError(t, err)

	mgr := session.NewManager()
	es, err := svc.OpenSession(ctx, mgr, "PRD-1")
	require.NoError(t, err)
	assert.Equal(t, 1, es.State().BaseVersion)

	es.Stage(patch.Snippet{Kind: patch.KindValidationField, Fragment: json.RawMessage(`{"id":"source_of_funds","fieldType":"textarea","label":"Source of Funds"}`)})
	_, err = es.ApplyPending()
	require.NoError(t, err)

	res, err := svc.SaveSession(ctx, es, "bob", "editor save")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Entry.VersionNumber)
	st := es.State()
	assert.False(t, st.Dirty)
	assert.Equal(t, 2, st.BaseVersion)
}
