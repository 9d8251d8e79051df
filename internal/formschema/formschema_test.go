package formschema

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kycForm = `{
  "metadata": {"version": 3, "createdBy": "ops@example.com"},
  "sections": [
    {
      "id": "applicant",
      "sectionTitle": "Applicant",
      "fields": [
        {"id": "full_name", "fieldType": "text", "label": "Full Name", "required": true},
        {"id": "employment", "fieldType": "select", "label": "Employment Status", "required": true,
         "options": ["Salaried", "Self-Employed"]},
        {"id": "trade_license", "fieldType": "text", "label": "Trade License Number", "required": true,
         "conditionalDisplay": {"dependsOn": "employment", "showWhen": ["Self-Employed"]}},
        {"id": "passport_no", "fieldType": "text", "label": "Passport Number", "required": false,
         "requiredAtStage": ["submitted", "review"]}
      ]
    }
  ],
  "validationFields": [
    {"id": "risk_notes", "fieldType": "textarea", "label": "Risk Notes", "required": false,
     "requiredAtStage": []}
  ],
  "requiredDocuments": {
    "categories": [
      {"id": "identity", "name": "Identity", "documents": [
        {"id": "passport", "name": "Passport", "isMandatory": true, "acceptedFileTypes": ["pdf", "jpg"]}
      ]}
    ]
  },
  "ruleContextMapping": {"mapping": {"Employment Status": "employmentType"}}
}`

func decodeFixture(t *testing.T) *FormConfiguration {
	t.Helper()
	cfg, report, err := Decode([]byte(kycForm))
	require.NoError(t, err)
	require.False(t, report.HasErrors(), "fixture should be valid: %v", report.Errors())
	return cfg
}

func TestParseStage(t *testing.T) {
	assert.Equal(t, StageReview, ParseStage("under_review"))
	assert.Equal(t, StageSubmitted, ParseStage("  Submitted "))
	assert.Equal(t, Stage("escalated"), ParseStage("escalated"))
	assert.False(t, Stage("escalated").Known())
	assert.Equal(t, -1, Stage("escalated").Index())
	assert.Less(t, StageDraft.Index(), StageSubmitted.Index())
	assert.Less(t, StageApproval.Index(), StagePaid.Index())
}

func TestDecode_ValidDocument(t *testing.T) {
	cfg := decodeFixture(t)

	assert.Equal(t, 3, cfg.Metadata.Version)
	require.Len(t, cfg.Sections, 1)
	assert.Len(t, cfg.Sections[0].Fields, 4)
	assert.Nil(t, cfg.Sections[0].Fields[0].RequiredAtStage)
	assert.NotNil(t, cfg.ValidationFields[0].RequiredAtStage)
	assert.Empty(t, cfg.ValidationFields[0].RequiredAtStage)
	assert.Equal(t, "employmentType", cfg.RuleContextMapping.Mapping["Employment Status"])
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, _, err := Decode([]byte(`{"sections": [`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse form configuration")

	_, _, err = Decode(nil)
	require.Error(t, err)
}

func TestDecode_MissingTopLevelShape(t *testing.T) {
	cfg, report, err := Decode([]byte(`{"validationFields": []}`))
	require.NoError(t, err)
	require.True(t, report.HasErrors())
	assert.Equal(t, "sections", report.Errors()[0].Path)
	assert.NotNil(t, cfg)

	var warned []string
	for _, w := range report.Warnings() {
		warned = append(warned, w.Path)
	}
	assert.Contains(t, warned, "requiredDocuments")
	assert.Contains(t, warned, "ruleContextMapping")
	assert.Contains(t, warned, "metadata")
}

func TestDecode_NotAnObject(t *testing.T) {
	cfg, report, err := Decode([]byte(`[1, 2, 3]`))
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.True(t, report.HasErrors())
}

func TestDecode_TypeMismatch(t *testing.T) {
	cfg, report, err := Decode([]byte(`{"sections": "applicant"}`))
	require.NoError(t, err)
	assert.Nil(t, cfg)
	require.True(t, report.HasErrors())
	assert.Equal(t, "sections", report.Errors()[len(report.Errors())-1].Path)
}

func TestDecode_BareMapping(t *testing.T) {
	cfg, report, err := Decode([]byte(`{"sections": [], "ruleContextMapping": {"License Type": "locationType"}}`))
	require.NoError(t, err)
	require.False(t, report.HasErrors())
	assert.Equal(t, map[string]string{"License Type": "locationType"}, cfg.RuleContextMapping.Mapping)
}

func TestValidate_BlockingErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		path string
	}{
		{
			name: "select without options",
			doc:  `{"sections":[{"id":"s","sectionTitle":"S","fields":[{"id":"a","fieldType":"select","label":"A"}]}]}`,
			path: "sections[0].fields[0].options",
		},
		{
			name: "radio with blank options",
			doc:  `{"sections":[{"id":"s","sectionTitle":"S","fields":[{"id":"a","fieldType":"radio","label":"A","options":[" "]}]}]}`,
			path: "sections[0].fields[0].options",
		},
		{
			name: "duplicate field id",
			doc:  `{"sections":[{"id":"s","sectionTitle":"S","fields":[{"id":"a","fieldType":"text","label":"A"},{"id":"a","fieldType":"text","label":"B"}]}]}`,
			path: "sections[0].fields[1].id",
		},
		{
			name: "unknown field type",
			doc:  `{"sections":[{"id":"s","sectionTitle":"S","fields":[{"id":"a","fieldType":"slider","label":"A"}]}]}`,
			path: "sections[0].fields[0].fieldType",
		},
		{
			name: "empty section id",
			doc:  `{"sections":[{"id":"","sectionTitle":"S","fields":[{"id":"a","fieldType":"text","label":"A"}]}]}`,
			path: "sections[0].id",
		},
		{
			name: "document without file types",
			doc:  `{"sections":[],"requiredDocuments":{"categories":[{"id":"c","name":"C","documents":[{"id":"d","name":"D","isMandatory":true,"acceptedFileTypes":[]}]}]}}`,
			path: "requiredDocuments.categories[0].documents[0].acceptedFileTypes",
		},
		{
			name: "dependsOn cycle",
			doc: `{"sections":[{"id":"s","sectionTitle":"S","fields":[
				{"id":"a","fieldType":"text","label":"A","conditionalDisplay":{"dependsOn":"b","showWhen":["x"]}},
				{"id":"b","fieldType":"text","label":"B","conditionalDisplay":{"dependsOn":"a","showWhen":["y"]}}]}]}`,
			path: "sections[0].fields[0].conditionalDisplay",
		},
		{
			name: "min greater than max",
			doc:  `{"sections":[{"id":"s","sectionTitle":"S","fields":[{"id":"n","fieldType":"number","label":"N","min":10,"max":1}]}]}`,
			path: "sections[0].fields[0].min",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, report, err := Decode([]byte(tt.doc))
			require.NoError(t, err)
			require.True(t, report.HasErrors())

			var paths []string
			for _, issue := range report.Errors() {
				paths = append(paths, issue.Path)
			}
			assert.Contains(t, paths, tt.path)

			var verr *ValidationError
			require.ErrorAs(t, report.Err(), &verr)
			assert.NotEmpty(t, verr.Issues)
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	doc := `{
	  "sections": [
	    {"id": "s", "sectionTitle": "S", "fields": [
	      {"id": "a", "fieldType": "text", "label": "A", "options": ["x"], "requiredAtStage": ["escalated"]},
	      {"id": "b", "fieldType": "text", "label": "B", "conditionalDisplay": {"dependsOn": "ghost", "showWhen": ["x"]}},
	      {"id": "dup", "fieldType": "text", "label": "Dup"}
	    ]},
	    {"id": "empty", "sectionTitle": "Empty", "fields": []}
	  ],
	  "validationFields": [{"id": "dup", "fieldType": "text", "label": "Dup"}],
	  "requiredDocuments": {"categories": []},
	  "ruleContextMapping": {"mapping": {"Nowhere": "nationality"}}
	}`

	_, report, err := Decode([]byte(doc))
	require.NoError(t, err)
	assert.False(t, report.HasErrors(), "unexpected errors: %v", report.Errors())

	var paths []string
	for _, w := range report.Warnings() {
		paths = append(paths, w.Path)
	}
	assert.Contains(t, paths, "metadata")
	assert.Contains(t, paths, "sections[0].fields[0].options")
	assert.Contains(t, paths, "sections[0].fields[0].requiredAtStage[0]")
	assert.Contains(t, paths, "sections[0].fields[1].conditionalDisplay.dependsOn")
	assert.Contains(t, paths, "validationFields[0].id")
	assert.Contains(t, paths, "sections[1].fields")
	assert.Contains(t, paths, `ruleContextMapping.mapping["Nowhere"]`)
}

func TestValidate_WarningOrderIsStable(t *testing.T) {
	cfg := New()
	cfg.Sections = []Section{{ID: "s", SectionTitle: "S", Fields: []Field{
		{ID: "z", FieldType: FieldText, Label: "Z", ConditionalDisplay: &ConditionalDisplay{DependsOn: "ghost1", ShowWhen: []string{"x"}}},
		{ID: "m", FieldType: FieldText, Label: "M", ConditionalDisplay: &ConditionalDisplay{DependsOn: "ghost2", ShowWhen: []string{"x"}}},
		{ID: "a", FieldType: FieldText, Label: "A", ConditionalDisplay: &ConditionalDisplay{DependsOn: "ghost3", ShowWhen: []string{"x"}}},
	}}}
	cfg.RuleContextMapping.Mapping = map[string]string{
		"Z": "zeta", "M": "zeta",
		"A": "alpha", "Nowhere": "alpha",
		"Q": "mu", "R": "mu",
	}

	messages := func() []string {
		var out []string
		for _, w := range Validate(cfg).Warnings() {
			out = append(out, w.Path+" "+w.Message)
		}
		return out
	}
	first := messages()
	for i := 0; i < 20; i++ {
		require.Equal(t, first, messages())
	}

	var deps, shared []string
	for _, w := range Validate(cfg).Warnings() {
		switch {
		case strings.HasSuffix(w.Path, "dependsOn"):
			deps = append(deps, w.Path)
		case w.Path == "ruleContextMapping":
			shared = append(shared, w.Message)
		}
	}
	assert.Equal(t, []string{
		"sections[0].fields[0].conditionalDisplay.dependsOn",
		"sections[0].fields[1].conditionalDisplay.dependsOn",
		"sections[0].fields[2].conditionalDisplay.dependsOn",
	}, deps)
	require.Len(t, shared, 3)
	assert.Contains(t, shared[0], `"alpha"`)
	assert.Contains(t, shared[1], `"mu"`)
	assert.Contains(t, shared[2], `"zeta"`)
}

func TestFindCycles(t *testing.T) {
	cfg := New()
	cfg.Sections = []Section{{ID: "s", SectionTitle: "S", Fields: []Field{
		{ID: "a", FieldType: FieldText, ConditionalDisplay: &ConditionalDisplay{DependsOn: "b", ShowWhen: []string{"1"}}},
		{ID: "b", FieldType: FieldText, ConditionalDisplay: &ConditionalDisplay{DependsOn: "c", ShowWhen: []string{"1"}}},
		{ID: "c", FieldType: FieldText, ConditionalDisplay: &ConditionalDisplay{DependsOn: "b", ShowWhen: []string{"1"}}},
		{ID: "self", FieldType: FieldText, ConditionalDisplay: &ConditionalDisplay{DependsOn: "self", ShowWhen: []string{"1"}}},
		{ID: "free", FieldType: FieldText},
	}}}

	cycles := FindCycles(cfg)
	require.Len(t, cycles, 2)
	assert.Equal(t, []string{"b", "c"}, cycles[0])
	assert.Equal(t, []string{"self"}, cycles[1])
}

func TestFieldMarshal_KeepsExplicitlyEmptyStages(t *testing.T) {
	data, err := json.Marshal(Field{ID: "x", FieldType: FieldText, Label: "X", RequiredAtStage: []Stage{}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"requiredAtStage":[]`)

	data, err = json.Marshal(Field{ID: "y", FieldType: FieldText, Label: "Y"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "requiredAtStage")
}

func TestExport_RoundTrip(t *testing.T) {
	cfg := decodeFixture(t)
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	data, err := Export(cfg, 4, "editor@example.com", now)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  "), "export should be indented")
	assert.Equal(t, 3, cfg.Metadata.Version, "export must not touch the source document")

	back, report, err := Decode(data)
	require.NoError(t, err)
	require.False(t, report.HasErrors())

	require.NotNil(t, back.Metadata)
	assert.Equal(t, 4, back.Metadata.Version)
	assert.Equal(t, "editor@example.com", back.Metadata.LastModifiedBy)
	assert.True(t, back.Metadata.LastModifiedAt.Equal(now))

	back.Metadata = nil
	original := cfg.Clone()
	original.Metadata = nil
	assert.Equal(t, original, back)
}

func TestCloneIsDeep(t *testing.T) {
	cfg := decodeFixture(t)
	clone := cfg.Clone()

	clone.Sections[0].Fields[1].Options[0] = "Retired"
	clone.Sections[0].Fields[2].ConditionalDisplay.ShowWhen[0] = "Salaried"
	clone.RequiredDocuments.Categories[0].Documents[0].AcceptedFileTypes[0] = "png"
	clone.RuleContextMapping.Mapping["Full Name"] = "applicantName"

	assert.Equal(t, "Salaried", cfg.Sections[0].Fields[1].Options[0])
	assert.Equal(t, "Self-Employed", cfg.Sections[0].Fields[2].ConditionalDisplay.ShowWhen[0])
	assert.Equal(t, "pdf", cfg.RequiredDocuments.Categories[0].Documents[0].AcceptedFileTypes[0])
	assert.NotContains(t, cfg.RuleContextMapping.Mapping, "Full Name")
}

func TestRuleContextMapping_ReassignmentIsLastWriteWins(t *testing.T) {
	m := RuleContextMapping{}
	m.Set("License Type", "locationType")
	m.Set("Business Location", "locationType")

	_, ok := m.KeyFor("License Type")
	assert.False(t, ok)
	key, ok := m.KeyFor("Business Location")
	assert.True(t, ok)
	assert.Equal(t, "locationType", key)
	assert.Equal(t, map[string][]string{"locationType": {"Business Location"}}, m.Inverse())
}

func TestIndex(t *testing.T) {
	cfg := decodeFixture(t)
	cfg.Sections[0].Fields = append(cfg.Sections[0].Fields, Field{ID: "risk_notes", FieldType: FieldTextarea, Label: "Notes"})

	idx := cfg.Index()
	assert.Equal(t, 0, idx.Sections["applicant"])
	assert.Equal(t, 0, idx.Categories["identity"])
	require.Len(t, idx.Fields["risk_notes"], 2)
	assert.Equal(t, InSection, idx.Fields["risk_notes"][0].Collection)
	assert.Equal(t, InValidation, idx.Fields["risk_notes"][1].Collection)

	f, ok := cfg.FieldByID("risk_notes")
	require.True(t, ok)
	assert.Equal(t, "Risk Notes", f.Label)
	assert.Equal(t, "Employment Status", cfg.Field(idx.Fields["employment"][0]).Label)
}
