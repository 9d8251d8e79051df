package patch

import (
	"strings"

	"onboarding-forms/internal/formschema"
)

// AddSection inserts a new section at position at (-1 appends).
func AddSection(doc *formschema.FormConfiguration, s formschema.Section, at int) (*formschema.FormConfiguration, error) {
	if strings.TrimSpace(s.ID) == "" {
		return doc, reject("section", "section id is required")
	}
	if doc.SectionByID(s.ID) >= 0 {
		return doc, reject("section", "section %q already exists", s.ID)
	}
	next := doc.Clone()
	var err error
	if next.Sections, err = insertAt(next.Sections, at, s.Clone()); err != nil {
		return doc, reject("section", "%v", err)
	}
	return checked(doc, next, "section")
}

// RemoveSection drops a section and its fields.
func RemoveSection(doc *formschema.FormConfiguration, id string) (*formschema.FormConfiguration, error) {
	next := doc.Clone()
	var n int
	next.Sections, n = removeWhere(next.Sections, func(s formschema.Section) bool { return s.ID == id })
	if n == 0 {
		return doc, reject("section", "section %q not found", id)
	}
	return next, nil
}

// AddField inserts a field into a section at position at (-1 appends).
func AddField(doc *formschema.FormConfiguration, sectionID string, f formschema.Field, at int) (*formschema.FormConfiguration, error) {
	if strings.TrimSpace(f.ID) == "" {
		return doc, reject("field", "field id is required")
	}
	if locs := doc.Index().Fields[f.ID]; len(locs) > 0 {
		return doc, reject("field", "field %q already exists", f.ID)
	}
	next := doc.Clone()
	si := next.SectionByID(sectionID)
	if si < 0 {
		return doc, reject("field", "section %q not found", sectionID)
	}
	var err error
	if next.Sections[si].Fields, err = insertAt(next.Sections[si].Fields, at, f.Clone()); err != nil {
		return doc, reject("field", "%v", err)
	}
	return checked(doc, next, "field")
}

// RemoveField removes a field from every section that holds it. Sections
// are kept even when they end up empty.
func RemoveField(doc *formschema.FormConfiguration, id string) (*formschema.FormConfiguration, error) {
	next := doc.Clone()
	total := 0
	for i := range next.Sections {
		var n int
		next.Sections[i].Fields, n = removeWhere(next.Sections[i].Fields, func(f formschema.Field) bool { return f.ID == id })
		total += n
	}
	if total == 0 {
		return doc, reject("field", "field %q not found in any section", id)
	}
	return next, nil
}

// PromoteToValidation moves a section field into validationFields. The
// section copy is then removed by Dedupe, and a section left empty is
// dropped.
func PromoteToValidation(doc *formschema.FormConfiguration, id string) (*formschema.FormConfiguration, error) {
	var found *formschema.Field
	for _, s := range doc.Sections {
		for _, f := range s.Fields {
			if f.ID == id {
				c := f.Clone()
				found = &c
				break
			}
		}
		if found != nil {
			break
		}
	}
	if found == nil {
		return doc, reject("validation_field", "field %q not found in any section", id)
	}
	next := doc.Clone()
	next.ValidationFields, _, _ = upsert(next.ValidationFields, *found, fieldID)
	return Dedupe(next), nil
}

// RemoveValidationField drops a validation-only field.
func RemoveValidationField(doc *formschema.FormConfiguration, id string) (*formschema.FormConfiguration, error) {
	next := doc.Clone()
	var n int
	next.ValidationFields, n = removeWhere(next.ValidationFields, func(f formschema.Field) bool { return f.ID == id })
	if n == 0 {
		return doc, reject("validation_field", "validation field %q not found", id)
	}
	return next, nil
}

// AddCategory inserts a document category at position at (-1 appends).
func AddCategory(doc *formschema.FormConfiguration, c formschema.DocumentCategory, at int) (*formschema.FormConfiguration, error) {
	if strings.TrimSpace(c.ID) == "" {
		return doc, reject("document_category", "category id is required")
	}
	if doc.CategoryByID(c.ID) >= 0 {
		return doc, reject("document_category", "category %q already exists", c.ID)
	}
	next := doc.Clone()
	var err error
	if next.RequiredDocuments.Categories, err = insertAt(next.RequiredDocuments.Categories, at, c.Clone()); err != nil {
		return doc, reject("document_category", "%v", err)
	}
	return checked(doc, next, "document_category")
}

// RemoveCategory drops a category with all its documents.
func RemoveCategory(doc *formschema.FormConfiguration, id string) (*formschema.FormConfiguration, error) {
	next := doc.Clone()
	var n int
	next.RequiredDocuments.Categories, n = removeWhere(next.RequiredDocuments.Categories, func(c formschema.DocumentCategory) bool { return c.ID == id })
	if n == 0 {
		return doc, reject("document_category", "category %q not found", id)
	}
	return next, nil
}

// AddDocument inserts a document requirement into a category.
func AddDocument(doc *formschema.FormConfiguration, categoryID string, d formschema.DocumentItem, at int) (*formschema.FormConfiguration, error) {
	if strings.TrimSpace(d.ID) == "" {
		return doc, reject("document", "document id is required")
	}
	next := doc.Clone()
	ci := next.CategoryByID(categoryID)
	if ci < 0 {
		return doc, reject("document", "category %q not found", categoryID)
	}
	cat := &next.RequiredDocuments.Categories[ci]
	var err error
	if cat.Documents, err = insertAt(cat.Documents, at, d.Clone()); err != nil {
		return doc, reject("document", "%v", err)
	}
	return checked(doc, next, "document")
}

// RemoveDocument drops a document requirement from a category.
func RemoveDocument(doc *formschema.FormConfiguration, categoryID, documentID string) (*formschema.FormConfiguration, error) {
	next := doc.Clone()
	ci := next.CategoryByID(categoryID)
	if ci < 0 {
		return doc, reject("document", "category %q not found", categoryID)
	}
	cat := &next.RequiredDocuments.Categories[ci]
	var n int
	cat.Documents, n = removeWhere(cat.Documents, func(d formschema.DocumentItem) bool { return d.ID == documentID })
	if n == 0 {
		return doc, reject("document", "document %q not found in category %q", documentID, categoryID)
	}
	return next, nil
}

// SetContextMapping maps a field label to a rule-context key. A key already
// owned by another label moves to this one.
func SetContextMapping(doc *formschema.FormConfiguration, label, key string) (*formschema.FormConfiguration, error) {
	label = strings.TrimSpace(label)
	key = strings.TrimSpace(key)
	if label == "" || key == "" {
		return doc, reject("mapping", "label and context key are required")
	}
	next := doc.Clone()
	next.RuleContextMapping.Set(label, key)
	return next, nil
}

// RemoveContextMapping drops the mapping for a label.
func RemoveContextMapping(doc *formschema.FormConfiguration, label string) (*formschema.FormConfiguration, error) {
	if _, ok := doc.RuleContextMapping.Mapping[label]; !ok {
		return doc, reject("mapping", "label %q is not mapped", label)
	}
	next := doc.Clone()
	next.RuleContextMapping.Remove(label)
	return next, nil
}

func checked(prev, next *formschema.FormConfiguration, kind string) (*formschema.FormConfiguration, error) {
	if introduced := newErrors(prev, next); len(introduced) > 0 {
		return prev, &RejectedError{Kind: kind, Reason: "edit would make the document invalid", Issues: introduced}
	}
	return next, nil
}
