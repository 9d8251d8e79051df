package patch

import (
	"encoding/json"
	"fmt"
	"strings"

	"onboarding-forms/internal/formschema"
)

// Op names a structural edit.
type Op string

const (
	OpAddSection            Op = "add_section"
	OpRemoveSection         Op = "remove_section"
	OpAddField              Op = "add_field"
	OpRemoveField           Op = "remove_field"
	OpPromote               Op = "promote"
	OpRemoveValidationField Op = "remove_validation_field"
	OpAddCategory           Op = "add_category"
	OpRemoveCategory        Op = "remove_category"
	OpAddDocument           Op = "add_document"
	OpRemoveDocument        Op = "remove_document"
	OpSetMapping            Op = "set_mapping"
	OpRemoveMapping         Op = "remove_mapping"
)

// Ops lists the supported edit operations.
func Ops() []Op {
	return []Op{
		OpAddSection, OpRemoveSection, OpAddField, OpRemoveField, OpPromote,
		OpRemoveValidationField, OpAddCategory, OpRemoveCategory, OpAddDocument,
		OpRemoveDocument, OpSetMapping, OpRemoveMapping,
	}
}

// Edit is one structural edit as it arrives from the CLI or the API.
//
// ParentID is the section for add_field and the category for the document
// ops. ID names the element removed or promoted. Fragment carries the new
// element for the add ops. Label and Key are used by the mapping ops.
type Edit struct {
	Op       Op              `json:"op"`
	ParentID string          `json:"parentId,omitempty"`
	ID       string          `json:"id,omitempty"`
	At       *int            `json:"at,omitempty"`
	Fragment json.RawMessage `json:"fragment,omitempty"`
	Label    string          `json:"label,omitempty"`
	Key      string          `json:"key,omitempty"`
}

// ParseOp accepts op names with hyphens or underscores.
func ParseOp(raw string) (Op, error) {
	op := Op(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	for _, known := range Ops() {
		if op == known {
			return op, nil
		}
	}
	return "", reject("edit", "unknown edit op %q", raw)
}

// Describe is a one-line summary used as version notes.
func (e Edit) Describe() string {
	switch e.Op {
	case OpSetMapping:
		return fmt.Sprintf("%s %q -> %s", e.Op, e.Label, e.Key)
	case OpRemoveMapping:
		return fmt.Sprintf("%s %q", e.Op, e.Label)
	}
	if e.ID != "" {
		return fmt.Sprintf("%s %s", e.Op, e.ID)
	}
	return string(e.Op)
}

// ApplyEdit dispatches e to the matching structural edit.
func ApplyEdit(doc *formschema.FormConfiguration, e Edit) (*formschema.FormConfiguration, error) {
	at := -1
	if e.At != nil {
		at = *e.At
	}
	switch e.Op {
	case OpAddSection:
		var s formschema.Section
		if err := decodeFragment(e, &s); err != nil {
			return doc, err
		}
		return AddSection(doc, s, at)
	case OpRemoveSection:
		return RemoveSection(doc, e.ID)
	case OpAddField:
		var f formschema.Field
		if err := decodeFragment(e, &f); err != nil {
			return doc, err
		}
		return AddField(doc, e.ParentID, f, at)
	case OpRemoveField:
		return RemoveField(doc, e.ID)
	case OpPromote:
		return PromoteToValidation(doc, e.ID)
	case OpRemoveValidationField:
		return RemoveValidationField(doc, e.ID)
	case OpAddCategory:
		var c formschema.DocumentCategory
		if err := decodeFragment(e, &c); err != nil {
			return doc, err
		}
		return AddCategory(doc, c, at)
	case OpRemoveCategory:
		return RemoveCategory(doc, e.ID)
	case OpAddDocument:
		var d formschema.DocumentItem
		if err := decodeFragment(e, &d); err != nil {
			return doc, err
		}
		return AddDocument(doc, e.ParentID, d, at)
	case OpRemoveDocument:
		return RemoveDocument(doc, e.ParentID, e.ID)
	case OpSetMapping:
		return SetContextMapping(doc, e.Label, e.Key)
	case OpRemoveMapping:
		return RemoveContextMapping(doc, e.Label)
	}
	return doc, reject("edit", "unknown edit op %q", e.Op)
}

func decodeFragment(e Edit, v any) error {
	if len(strings.TrimSpace(string(e.Fragment))) == 0 {
		return reject(string(e.Op), "fragment is required")
	}
	if err := decodeStrict(e.Fragment, v); err != nil {
		return reject(string(e.Op), "invalid fragment: %v", err)
	}
	return nil
}
