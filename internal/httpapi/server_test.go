package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding-forms/internal/formservice"
	"onboarding-forms/internal/ledger"
	"onboarding-forms/internal/session"
	"onboarding-forms/internal/store"
	"onboarding-forms/internal/templates"
)

const kycJSON = `{
  "sections": [
    {"id": "applicant", "sectionTitle": "Applicant", "fields": [
      {"id": "full_name", "fieldType": "text", "label": "Full Name", "required": true},
      {"id": "passport_no", "fieldType": "text", "label": "Passport Number", "requiredAtStage": ["review"]},
      {"id": "license_type", "fieldType": "select", "label": "License Type", "options": ["Freezone", "Mainland"]}
    ]}
  ],
  "validationFields": [],
  "requiredDocuments": {"categories": []},
  "ruleContextMapping": {"License Type": "locationType"}
}`

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	t        *testing.T
	router   *gin.Engine
	store    *store.MemoryStore
	sessions *session.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	lib, err := templates.Load("")
	require.NoError(t, err)
	m := store.NewMemoryStore()
	fixed := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	svc := formservice.New(m, zerolog.Nop(),
		formservice.WithTemplates(lib),
		formservice.WithClock(func() time.Time { return fixed }),
	)
	sessions := session.NewManager()
	return &harness{t: t, router: New(svc, sessions, zerolog.Nop()).Router(), store: m, sessions: sessions}
}

func (h *harness) do(method, path, contentType, body string) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(UserHeader, "alice")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) doJSON(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	data, err := json.Marshal(body)
	require.NoError(h.t, err)
	return h.do(method, path, "application/json", string(data))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "error envelope missing: %s", w.Body.String())
	return e["code"].(string)
}

func (h *harness) seed(productID string) {
	h.t.Helper()
	w := h.do(http.MethodPut, "/api/products/"+productID+"/configuration", "application/json", kycJSON)
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestConfiguration_ImportGetExport(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/products/PRD-1/configuration", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["version"])

	w = h.do(http.MethodPut, "/api/products/PRD-1/configuration?notes=first", "application/json", kycJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	entry := decode(t, w)["entry"].(map[string]any)
	assert.Equal(t, float64(1), entry["versionNumber"])
	assert.Equal(t, "alice", entry["changedBy"])
	assert.Equal(t, "first", entry["changeNotes"])

	w = h.do(http.MethodGet, "/api/products/PRD-1/configuration", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["version"])

	w = h.do(http.MethodGet, "/api/products/PRD-1/configuration/export", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="PRD-1.json"`)
	meta := decode(t, w)["metadata"].(map[string]any)
	assert.Equal(t, "alice", meta["lastModifiedBy"])

	w = h.do(http.MethodGet, "/api/products", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"PRD-1"}, decode(t, w)["products"])
}

func TestConfiguration_ImportYAMLByContentType(t *testing.T) {
	h := newHarness(t)
	doc := "sections:\n  - id: s1\n    sectionTitle: One\n    fields:\n      - id: a\n        fieldType: text\n        label: A\n"
	w := h.do(http.MethodPut, "/api/products/PRD-1/configuration", "application/yaml", doc)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestConfiguration_ImportErrors(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPut, "/api/products/PRD-1/configuration", "application/json", `{"sections": [`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeRejected, errorCode(t, w))

	bad := `{"sections": [{"id": "s", "sectionTitle": "S", "fields": [{"id": "x", "fieldType": "select", "label": "X"}]}]}`
	w = h.do(http.MethodPut, "/api/products/PRD-1/configuration", "application/json", bad)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	e := decode(t, w)["error"].(map[string]any)
	details := e["details"].([]any)
	require.NotEmpty(t, details)
	assert.Equal(t, "sections[0].fields[0].options", details[0].(map[string]any)["path"])

	w = h.do(http.MethodPut, "/api/products/PRD-1/configuration?format=xml", "", kycJSON)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeBadRequest, errorCode(t, w))

	_, err := h.store.GetDocument(context.Background(), "PRD-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSnippets(t *testing.T) {
	h := newHarness(t)
	h.seed("PRD-1")

	w := h.doJSON(http.MethodPost, "/api/products/PRD-1/snippets", map[string]any{
		"fragment":        map[string]any{"id": "email", "fieldType": "email", "label": "Email"},
		"targetSectionId": "applicant",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "field", body["outcome"].(map[string]any)["kind"])
	assert.Equal(t, float64(2), body["entry"].(map[string]any)["versionNumber"])

	w = h.doJSON(http.MethodPost, "/api/products/PRD-1/snippets", map[string]any{
		"kind":     "widget",
		"fragment": map[string]any{"id": "x"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.doJSON(http.MethodPost, "/api/products/PRD-1/snippets", map[string]any{
		"fragment": map[string]any{"id": "x"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeBadRequest, errorCode(t, w))

	w = h.doJSON(http.MethodPost, "/api/products/PRD-1/snippets", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSnippets_Broadcast(t *testing.T) {
	h := newHarness(t)
	h.seed("PRD-1")
	h.seed("PRD-2")

	section := map[string]any{
		"id": "consent", "sectionTitle": "Consent",
		"fields": []any{map[string]any{"id": "agree", "fieldType": "checkbox", "label": "I agree"}},
	}
	w := h.doJSON(http.MethodPost, "/api/snippets", map[string]any{"fragment": section})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode(t, w)
	assert.Equal(t, float64(2), report["applied"])
	assert.Equal(t, float64(0), report["failed"])

	w = h.doJSON(http.MethodPost, "/api/products/PRD-1/snippets", map[string]any{"fragment": section, "applyTo": "all"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["applied"])
}

func TestReorderAndVersions(t *testing.T) {
	h := newHarness(t)
	h.seed("PRD-1")

	w := h.doJSON(http.MethodPost, "/api/products/PRD-1/reorder", map[string]any{
		"collection": "fields", "parentId": "applicant", "from": 2, "to": 0,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc, err := h.store.GetDocument(context.Background(), "PRD-1")
	require.NoError(t, err)
	assert.Equal(t, "license_type", doc.Sections[0].Fields[0].ID)

	w = h.doJSON(http.MethodPost, "/api/products/PRD-1/reorder", map[string]any{
		"collection": "fields", "parentId": "applicant", "from": 7, "to": 0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.doJSON(http.MethodPost, "/api/products/PRD-1/reorder", map[string]any{"collection": "sections", "from": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/products/PRD-1/versions", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	versions := decode(t, w)["versions"].([]any)
	require.Len(t, versions, 2)
	assert.Equal(t, float64(2), versions[0].(map[string]any)["versionNumber"])
}

func TestRestore(t *testing.T) {
	h := newHarness(t)
	h.seed("PRD-1")
	h.doJSON(http.MethodPost, "/api/products/PRD-1/reorder", map[string]any{
		"collection": "fields", "parentId": "applicant", "from": 2, "to": 0,
	})

	w := h.do(http.MethodPost, "/api/products/PRD-1/versions/1/restore", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["restoredFrom"])

	w = h.do(http.MethodPost, "/api/products/PRD-1/versions/1/restore?save=true", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["entry"].(map[string]any)["versionNumber"])

	doc, err := h.store.GetDocument(context.Background(), "PRD-1")
	require.NoError(t, err)
	assert.Equal(t, "full_name", doc.Sections[0].Fields[0].ID)

	w = h.do(http.MethodPost, "/api/products/PRD-1/versions/99/restore", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeNotFound, errorCode(t, w))

	w = h.do(http.MethodPost, "/api/products/PRD-1/versions/first/restore", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolve(t *testing.T) {
	h := newHarness(t)
	h.seed("PRD-1")

	w := h.doJSON(http.MethodPost, "/api/products/PRD-1/resolve", map[string]any{
		"stage":  "under_review",
		"values": map[string]any{"full_name": "Jane"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "review", body["stage"])
	assert.Equal(t, true, body["knownStage"])
	assert.Equal(t, []any{"full_name", "passport_no"}, body["required"])
	assert.Equal(t, false, body["complete"])
	missing := body["missing"].([]any)
	require.Len(t, missing, 1)
	assert.Equal(t, "passport_no", missing[0].(map[string]any)["fieldId"])
}

func TestRuleContext(t *testing.T) {
	h := newHarness(t)
	h.seed("PRD-1")

	values := map[string]any{"values": map[string]any{"license_type": "Freezone", "Business Risk": "HIGH"}}
	w := h.doJSON(http.MethodPost, "/api/products/PRD-1/rule-context", values)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rc := decode(t, w)["context"].(map[string]any)
	assert.Equal(t, "Freezone", rc["locationType"])
	assert.Equal(t, "HIGH", rc["activityRiskLevel"])

	w = h.doJSON(http.MethodPost, "/api/products/PRD-1/rule-context?assess=true", values)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	r := decode(t, w)["risk"].(map[string]any)
	assert.Equal(t, "HIGH", r["level"])
	assert.Equal(t, "static", r["scorer"])
}

func TestTemplates(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/templates", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["templates"].([]any), 2)

	w = h.do(http.MethodPost, "/api/products/PRD-1/templates/corporate-account", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(http.MethodPost, "/api/products/PRD-1/templates/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDedupeEndpoint(t *testing.T) {
	h := newHarness(t)
	h.seed("PRD-1")
	w := h.do(http.MethodPost, "/api/products/PRD-1/dedupe", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["saved"])
}

func TestPromoteField(t *testing.T) {
	h := newHarness(t)
	h.seed("PRD-1")

	w := h.do(http.MethodPost, "/api/products/PRD-1/fields/passport_no/promote", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	doc, err := h.store.GetDocument(context.Background(), "PRD-1")
	require.NoError(t, err)
	require.Len(t, doc.ValidationFields, 1)
	assert.Equal(t, "passport_no", doc.ValidationFields[0].ID)
	assert.Len(t, doc.Sections[0].Fields, 2)

	w = h.do(http.MethodPost, "/api/products/PRD-1/fields/nope/promote", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeRejected, errorCode(t, w))
}

func TestEdits(t *testing.T) {
	h := newHarness(t)
	h.seed("PRD-1")

	w := h.doJSON(http.MethodPost, "/api/products/PRD-1/edits", map[string]any{
		"op":       "add_category",
		"fragment": map[string]any{"id": "bank", "name": "Bank", "documents": []any{}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.doJSON(http.MethodPost, "/api/products/PRD-1/edits", map[string]any{
		"op":       "add_document",
		"parentId": "bank",
		"fragment": map[string]any{"id": "letter", "name": "Letter", "acceptedFileTypes": []string{}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "edit that introduces a structural error")
	assert.Equal(t, CodeRejected, errorCode(t, w))

	w = h.doJSON(http.MethodPost, "/api/products/PRD-1/edits", map[string]any{"op": "rename"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	doc, err := h.store.GetDocument(context.Background(), "PRD-1")
	require.NoError(t, err)
	require.Len(t, doc.RequiredDocuments.Categories, 1)
	assert.Empty(t, doc.RequiredDocuments.Categories[0].Documents)
}

func TestSessions(t *testing.T) {
	h := newHarness(t)
	h.seed("PRD-1")

	w := h.do(http.MethodPost, "/api/products/PRD-1/sessions", "", "")
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)
	base := "/api/sessions/" + id

	w = h.do(http.MethodPost, base+"/apply", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.doJSON(http.MethodPost, base+"/snippet", map[string]any{
		"fragment": map[string]any{"id": "email", "fieldType": "email", "label": "Email"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotNil(t, decode(t, w)["pendingPatch"])

	w = h.do(http.MethodPost, base+"/apply", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	state := decode(t, w)["session"].(map[string]any)
	assert.Equal(t, true, state["dirty"])

	w = h.doJSON(http.MethodPost, base+"/select", map[string]any{"sectionId": "applicant", "fieldIds": []string{"email"}})
	require.Equal(t, http.StatusOK, w.Code)
	w = h.doJSON(http.MethodPost, base+"/select", map[string]any{"sectionId": "nowhere"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.doJSON(http.MethodPost, base+"/save", map[string]any{"notes": "from editor"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, float64(2), body["saved"].(map[string]any)["entry"].(map[string]any)["versionNumber"])
	assert.Equal(t, false, body["session"].(map[string]any)["dirty"])

	doc, err := h.store.GetDocument(context.Background(), "PRD-1")
	require.NoError(t, err)
	_, ok := doc.FieldByID("email")
	assert.True(t, ok)

	w = h.do(http.MethodDelete, base, "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = h.do(http.MethodGet, base, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, h.sessions.Count())
}

func TestSessions_ReplaceDocumentRefusesBlockingErrors(t *testing.T) {
	h := newHarness(t)
	h.seed("PRD-1")
	w := h.do(http.MethodPost, "/api/products/PRD-1/sessions", "", "")
	require.Equal(t, http.StatusCreated, w.Code)
	base := "/api/sessions/" + decode(t, w)["id"].(string)

	bad := `{"sections": [{"id": "s", "sectionTitle": "S", "fields": [{"id": "x", "fieldType": "radio", "label": "X"}]}]}`
	w = h.do(http.MethodPut, base+"/document", "application/json", bad)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, CodeInvalid, errorCode(t, w))

	yamlDoc := "sections:\n  - id: only\n    sectionTitle: Only\n    fields:\n      - id: a\n        fieldType: text\n        label: A\n"
	w = h.do(http.MethodPut, base+"/document", "application/yaml", yamlDoc)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	doc := decode(t, w)["session"].(map[string]any)["document"].(map[string]any)
	assert.Len(t, doc["sections"].([]any), 1)
}

func TestClassify(t *testing.T) {
	status, body := classify(fmt.Errorf("failed to append: %w", ledger.ErrVersionConflict))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, CodeConflict, body.Code)

	status, body = classify(errors.New("connection reset"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", body.Message)

	status, _ = classify(fmt.Errorf("load: %w", session.ErrSessionNotFound))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodOptions, "/api/products/PRD-1/configuration", "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), UserHeader)
}
