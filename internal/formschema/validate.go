package formschema

import (
	"fmt"
	"sort"
	"strings"
)

// Severity classifies a structural issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one structural finding, addressed by a document path such as
// sections[0].fields[2].options.
type Issue struct {
	Severity Severity `json:"severity"`
	Path     string   `json:"path,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// Report collects blocking errors and non-blocking warnings.
type Report struct {
	Issues []Issue `json:"issues"`
}

func (r *Report) addError(path, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) addWarning(path, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)})
}

// Merge appends the issues of other.
func (r *Report) Merge(other Report) {
	r.Issues = append(r.Issues, other.Issues...)
}

// HasErrors reports whether any blocking issue was found.
func (r Report) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the blocking issues.
func (r Report) Errors() []Issue {
	return r.filter(SeverityError)
}

// Warnings returns the non-blocking issues.
func (r Report) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

func (r Report) filter(sev Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

// Err returns a *ValidationError when the report holds blocking issues.
func (r Report) Err() error {
	if !r.HasErrors() {
		return nil
	}
	return &ValidationError{Issues: r.Errors()}
}

// ValidationError rejects a document wholesale.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "invalid form configuration"
	}
	msgs := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		msgs = append(msgs, i.String())
	}
	return fmt.Sprintf("invalid form configuration (%d errors): %s", len(e.Issues), strings.Join(msgs, "; "))
}

// Validate checks a decoded document. It never modifies cfg.
func Validate(cfg *FormConfiguration) Report {
	var r Report
	if cfg == nil {
		r.addError("", "document is empty")
		return r
	}
	if cfg.Metadata == nil {
		r.addWarning("metadata", "missing metadata; it will be stamped on save")
	}

	sectionFieldIDs := make(map[string]string)
	sectionIDs := make(map[string]string)
	for si, s := range cfg.Sections {
		path := fmt.Sprintf("sections[%d]", si)
		switch {
		case strings.TrimSpace(s.ID) == "":
			r.addError(path+".id", "section id is required")
		case sectionIDs[s.ID] != "":
			r.addError(path+".id", "duplicate section id %q (first at %s)", s.ID, sectionIDs[s.ID])
		default:
			sectionIDs[s.ID] = path
		}
		if strings.TrimSpace(s.SectionTitle) == "" {
			r.addWarning(path+".sectionTitle", "section has no title")
		}
		if len(s.Fields) == 0 {
			r.addWarning(path+".fields", "section has no fields")
		}
		for fi, f := range s.Fields {
			fpath := fmt.Sprintf("%s.fields[%d]", path, fi)
			if first, dup := sectionFieldIDs[f.ID]; dup && f.ID != "" {
				r.addError(fpath+".id", "duplicate field id %q (first at %s)", f.ID, first)
			} else if f.ID != "" {
				sectionFieldIDs[f.ID] = fpath
			}
			validateField(&r, fpath, f)
		}
	}

	validationIDs := make(map[string]string)
	for fi, f := range cfg.ValidationFields {
		fpath := fmt.Sprintf("validationFields[%d]", fi)
		if first, dup := validationIDs[f.ID]; dup && f.ID != "" {
			r.addError(fpath+".id", "duplicate validation field id %q (first at %s)", f.ID, first)
		} else if f.ID != "" {
			validationIDs[f.ID] = fpath
		}
		if sectionPath, both := sectionFieldIDs[f.ID]; both && f.ID != "" {
			r.addWarning(fpath+".id", "field %q also appears at %s; it will be removed from the section on save", f.ID, sectionPath)
		}
		validateField(&r, fpath, f)
	}

	validateDependencies(&r, cfg)
	validateDocuments(&r, cfg)
	validateMapping(&r, cfg)
	return r
}

func validateField(r *Report, path string, f Field) {
	if strings.TrimSpace(f.ID) == "" {
		r.addError(path+".id", "field id is required")
	}
	if !f.FieldType.Valid() {
		r.addError(path+".fieldType", "unsupported field type %q", f.FieldType)
	}
	if strings.TrimSpace(f.Label) == "" {
		r.addWarning(path+".label", "field has no label")
	}
	if f.FieldType.IsChoice() && len(nonBlank(f.Options)) == 0 {
		r.addError(path+".options", "%s field requires at least one option", f.FieldType)
	}
	if len(f.Options) > 0 && !f.FieldType.IsChoice() && f.FieldType != FieldCheckbox {
		r.addWarning(path+".options", "options are ignored for %s fields", f.FieldType)
	}
	if (f.Min != nil || f.Max != nil || f.Step != nil) && !f.FieldType.IsNumeric() && f.FieldType != FieldDate {
		r.addWarning(path, "min/max/step are ignored for %s fields", f.FieldType)
	}
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		r.addError(path+".min", "min %v is greater than max %v", *f.Min, *f.Max)
	}
	if f.Step != nil && *f.Step <= 0 {
		r.addError(path+".step", "step must be positive")
	}
	for i, st := range f.RequiredAtStage {
		if !st.Known() {
			r.addWarning(fmt.Sprintf("%s.requiredAtStage[%d]", path, i), "unknown stage %q never activates a requirement", st)
		}
	}
	if f.ConditionalDisplay != nil {
		cd := f.ConditionalDisplay
		if strings.TrimSpace(cd.DependsOn) == "" {
			r.addError(path+".conditionalDisplay.dependsOn", "dependsOn is required")
		}
		if len(cd.ShowWhen) == 0 {
			r.addWarning(path+".conditionalDisplay.showWhen", "empty showWhen hides the field permanently")
		}
	}
}

// validateDependencies flags dangling references and dependsOn cycles.
func validateDependencies(r *Report, cfg *FormConfiguration) {
	known := make(map[string]bool)
	for _, f := range cfg.AllFields() {
		known[f.ID] = true
	}
	graph := DependencyGraph(cfg)
	for _, f := range cfg.EffectiveFields() {
		parent, ok := graph[f.ID]
		if ok && !known[parent] {
			r.addWarning(fieldPath(cfg, f.ID)+".conditionalDisplay.dependsOn", "dependsOn references unknown field %q", parent)
		}
	}
	for _, cycle := range FindCycles(cfg) {
		r.addError(fieldPath(cfg, cycle[0])+".conditionalDisplay", "conditional display cycle: %s", strings.Join(append(cycle, cycle[0]), " -> "))
	}
}

func validateDocuments(r *Report, cfg *FormConfiguration) {
	categoryIDs := make(map[string]string)
	documentIDs := make(map[string]string)
	for ci, cat := range cfg.RequiredDocuments.Categories {
		path := fmt.Sprintf("requiredDocuments.categories[%d]", ci)
		switch {
		case strings.TrimSpace(cat.ID) == "":
			r.addError(path+".id", "category id is required")
		case categoryIDs[cat.ID] != "":
			r.addError(path+".id", "duplicate category id %q (first at %s)", cat.ID, categoryIDs[cat.ID])
		default:
			categoryIDs[cat.ID] = path
		}
		if strings.TrimSpace(cat.Name) == "" {
			r.addWarning(path+".name", "category has no name")
		}
		for di, doc := range cat.Documents {
			dpath := fmt.Sprintf("%s.documents[%d]", path, di)
			switch {
			case strings.TrimSpace(doc.ID) == "":
				r.addError(dpath+".id", "document id is required")
			case documentIDs[doc.ID] != "":
				r.addError(dpath+".id", "duplicate document id %q (first at %s)", doc.ID, documentIDs[doc.ID])
			default:
				documentIDs[doc.ID] = dpath
			}
			if strings.TrimSpace(doc.Name) == "" {
				r.addWarning(dpath+".name", "document has no name")
			}
			if len(nonBlank(doc.AcceptedFileTypes)) == 0 {
				r.addError(dpath+".acceptedFileTypes", "at least one accepted file type is required")
			}
		}
	}
}

func validateMapping(r *Report, cfg *FormConfiguration) {
	labels := make(map[string]bool)
	for _, f := range cfg.AllFields() {
		labels[f.Label] = true
	}
	mapped := make([]string, 0, len(cfg.RuleContextMapping.Mapping))
	for label := range cfg.RuleContextMapping.Mapping {
		mapped = append(mapped, label)
	}
	sort.Strings(mapped)
	for _, label := range mapped {
		key := cfg.RuleContextMapping.Mapping[label]
		path := fmt.Sprintf("ruleContextMapping.mapping[%q]", label)
		if strings.TrimSpace(key) == "" {
			r.addWarning(path, "empty context key is ignored")
		}
		if !labels[label] {
			r.addWarning(path, "no field is labelled %q", label)
		}
	}
	inverse := cfg.RuleContextMapping.Inverse()
	keys := make([]string, 0, len(inverse))
	for key := range inverse {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if owners := inverse[key]; len(owners) > 1 {
			r.addWarning("ruleContextMapping", "context key %q is mapped from several labels: %s", key, strings.Join(owners, ", "))
		}
	}
}

func fieldPath(cfg *FormConfiguration, id string) string {
	for fi, f := range cfg.ValidationFields {
		if f.ID == id {
			return fmt.Sprintf("validationFields[%d]", fi)
		}
	}
	for si, s := range cfg.Sections {
		for fi, f := range s.Fields {
			if f.ID == id {
				return fmt.Sprintf("sections[%d].fields[%d]", si, fi)
			}
		}
	}
	return id
}

func nonBlank(values []string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
