package patch

import (
	"fmt"
	"strings"

	"onboarding-forms/internal/formschema"
)

// CollectionKind names an ordered collection inside a document.
type CollectionKind string

const (
	CollectionSections         CollectionKind = "sections"
	CollectionFields           CollectionKind = "fields"
	CollectionValidationFields CollectionKind = "validation_fields"
	CollectionCategories       CollectionKind = "categories"
	CollectionDocuments        CollectionKind = "documents"
)

// ParseCollectionKind accepts the collection names, singular or plural.
func ParseCollectionKind(raw string) (CollectionKind, error) {
	s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
	s = strings.TrimSuffix(s, "s")
	switch s {
	case "section":
		return CollectionSections, nil
	case "field":
		return CollectionFields, nil
	case "validation_field", "validationfield":
		return CollectionValidationFields, nil
	case "categorie", "category", "document_categorie", "document_category":
		return CollectionCategories, nil
	case "document":
		return CollectionDocuments, nil
	}
	return "", reject("reorder", "unknown collection %q", raw)
}

// Collection addresses one ordered list. ParentID is the section id for
// fields and the category id for documents.
type Collection struct {
	Kind     CollectionKind `json:"kind"`
	ParentID string         `json:"parentId,omitempty"`
}

func (c Collection) String() string {
	if c.ParentID == "" {
		return string(c.Kind)
	}
	return fmt.Sprintf("%s of %s", c.Kind, c.ParentID)
}

// Reorder moves the element at from to position to, shifting the elements in
// between. Ids and contents are untouched.
func Reorder(doc *formschema.FormConfiguration, c Collection, from, to int) (*formschema.FormConfiguration, error) {
	next := doc.Clone()
	var err error
	switch c.Kind {
	case CollectionSections:
		next.Sections, err = move(next.Sections, from, to)
	case CollectionFields:
		si := next.SectionByID(c.ParentID)
		if si < 0 {
			return doc, reject("reorder", "section %q not found", c.ParentID)
		}
		next.Sections[si].Fields, err = move(next.Sections[si].Fields, from, to)
	case CollectionValidationFields:
		next.ValidationFields, err = move(next.ValidationFields, from, to)
	case CollectionCategories:
		next.RequiredDocuments.Categories, err = move(next.RequiredDocuments.Categories, from, to)
	case CollectionDocuments:
		ci := next.CategoryByID(c.ParentID)
		if ci < 0 {
			return doc, reject("reorder", "category %q not found", c.ParentID)
		}
		cat := &next.RequiredDocuments.Categories[ci]
		cat.Documents, err = move(cat.Documents, from, to)
	default:
		return doc, reject("reorder", "unknown collection %q", c.Kind)
	}
	if err != nil {
		return doc, reject("reorder", "%s: %v", c, err)
	}
	return next, nil
}

func move[T any](items []T, from, to int) ([]T, error) {
	if from < 0 || from >= len(items) {
		return items, fmt.Errorf("from index %d out of range [0,%d)", from, len(items))
	}
	if to < 0 || to >= len(items) {
		return items, fmt.Errorf("to index %d out of range [0,%d)", to, len(items))
	}
	if from == to {
		return items, nil
	}
	item := items[from]
	if from < to {
		copy(items[from:to], items[from+1:to+1])
	} else {
		copy(items[to+1:from+1], items[to:from])
	}
	items[to] = item
	return items, nil
}

func insertAt[T any](items []T, at int, item T) ([]T, error) {
	if at < 0 || at >= len(items) {
		if at != -1 && at != len(items) {
			return items, fmt.Errorf("position %d out of range [0,%d]", at, len(items))
		}
		return append(items, item), nil
	}
	items = append(items, item)
	copy(items[at+1:], items[at:len(items)-1])
	items[at] = item
	return items, nil
}

func removeWhere[T any](items []T, match func(T) bool) ([]T, int) {
	kept := items[:0]
	removed := 0
	for _, it := range items {
		if match(it) {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	return kept, removed
}
