package patch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"onboarding-forms/internal/formschema"
)

// Kind selects the collection a snippet is upserted into.
type Kind string

const (
	KindSection          Kind = "section"
	KindField            Kind = "field"
	KindValidationField  Kind = "validation_field"
	KindDocumentCategory Kind = "document_category"
)

// Kinds lists the supported snippet kinds.
func Kinds() []Kind {
	return []Kind{KindSection, KindField, KindValidationField, KindDocumentCategory}
}

// ParseKind accepts the kind names plus their hyphenated/camelCase spellings.
func ParseKind(raw string) (Kind, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	switch s {
	case "section":
		return KindSection, nil
	case "field":
		return KindField, nil
	case "validation_field", "validationfield":
		return KindValidationField, nil
	case "document_category", "documentcategory", "category":
		return KindDocumentCategory, nil
	}
	return "", reject(raw, "unknown snippet kind %q", raw)
}

// Target narrows where a field snippet lands.
type Target struct {
	SectionID string `json:"sectionId,omitempty"`
}

// Snippet is one JSON fragment with an out-of-band kind selector.
type Snippet struct {
	Kind     Kind            `json:"kind"`
	Fragment json.RawMessage `json:"fragment"`
	Target   Target          `json:"target"`
}

// Outcome describes where a snippet landed.
type Outcome struct {
	Kind      Kind   `json:"kind"`
	ID        string `json:"id"`
	SectionID string `json:"sectionId,omitempty"`
	Index     int    `json:"index"`
	Replaced  bool   `json:"replaced"`
}

// ApplySnippet upserts the fragment by id: a matching element in the target
// collection is replaced at its position, otherwise the fragment is appended.
// Field snippets go to Target.SectionID or to the first section. The edit is
// rejected if it would introduce a structural error the document did not
// already have.
func ApplySnippet(doc *formschema.FormConfiguration, s Snippet) (*formschema.FormConfiguration, Outcome, error) {
	kind := string(s.Kind)
	out := Outcome{Kind: s.Kind}
	if len(bytes.TrimSpace(s.Fragment)) == 0 {
		return doc, out, reject(kind, "empty fragment")
	}

	next := doc.Clone()
	switch s.Kind {
	case KindSection:
		var sec formschema.Section
		if err := decodeStrict(s.Fragment, &sec); err != nil {
			return doc, out, reject(kind, "fragment does not match a section: %v", err)
		}
		if strings.TrimSpace(sec.ID) == "" {
			return doc, out, reject(kind, "fragment has no id")
		}
		out.ID = sec.ID
		next.Sections, out.Index, out.Replaced = upsert(next.Sections, sec.Clone(), func(x formschema.Section) string { return x.ID })

	case KindField:
		var f formschema.Field
		if err := decodeStrict(s.Fragment, &f); err != nil {
			return doc, out, reject(kind, "fragment does not match a field: %v", err)
		}
		if strings.TrimSpace(f.ID) == "" {
			return doc, out, reject(kind, "fragment has no id")
		}
		si := 0
		if s.Target.SectionID != "" {
			si = next.SectionByID(s.Target.SectionID)
			if si < 0 {
				return doc, out, reject(kind, "target section %q not found", s.Target.SectionID)
			}
		} else if len(next.Sections) == 0 {
			return doc, out, reject(kind, "document has no sections to add the field to")
		}
		out.ID = f.ID
		out.SectionID = next.Sections[si].ID
		next.Sections[si].Fields, out.Index, out.Replaced = upsert(next.Sections[si].Fields, f.Clone(), fieldID)

	case KindValidationField:
		var f formschema.ValidationField
		if err := decodeStrict(s.Fragment, &f); err != nil {
			return doc, out, reject(kind, "fragment does not match a validation field: %v", err)
		}
		if strings.TrimSpace(f.ID) == "" {
			return doc, out, reject(kind, "fragment has no id")
		}
		out.ID = f.ID
		next.ValidationFields, out.Index, out.Replaced = upsert(next.ValidationFields, f.Clone(), fieldID)

	case KindDocumentCategory:
		var cat formschema.DocumentCategory
		if err := decodeStrict(s.Fragment, &cat); err != nil {
			return doc, out, reject(kind, "fragment does not match a document category: %v", err)
		}
		if strings.TrimSpace(cat.ID) == "" {
			return doc, out, reject(kind, "fragment has no id")
		}
		out.ID = cat.ID
		next.RequiredDocuments.Categories, out.Index, out.Replaced = upsert(next.RequiredDocuments.Categories, cat.Clone(), func(x formschema.DocumentCategory) string { return x.ID })

	default:
		return doc, out, reject(kind, "unknown snippet kind %q", s.Kind)
	}

	next.Normalize()
	if introduced := newErrors(doc, next); len(introduced) > 0 {
		return doc, out, &RejectedError{Kind: kind, Reason: fmt.Sprintf("fragment %q is invalid", out.ID), Issues: introduced}
	}
	return next, out, nil
}

// decodeStrict rejects unknown keys so a fragment of one kind cannot be
// silently accepted as another.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("fragment must be a single JSON object")
	}
	return nil
}

// newErrors returns blocking issues present in next but not in prev.
func newErrors(prev, next *formschema.FormConfiguration) []formschema.Issue {
	seen := make(map[formschema.Issue]bool)
	for _, i := range formschema.Validate(prev).Errors() {
		seen[i] = true
	}
	var out []formschema.Issue
	for _, i := range formschema.Validate(next).Errors() {
		if !seen[i] {
			out = append(out, i)
		}
	}
	return out
}

func fieldID(f formschema.Field) string { return f.ID }

func upsert[T any](items []T, item T, id func(T) string) ([]T, int, bool) {
	want := id(item)
	for i := range items {
		if id(items[i]) == want {
			items[i] = item
			return items, i, true
		}
	}
	return append(items, item), len(items), false
}
