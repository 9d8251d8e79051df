package formschema

// Collection names where a field id can live.
const (
	InSection    = "section"
	InValidation = "validation"
)

// FieldLocation points at one occurrence of a field id.
type FieldLocation struct {
	Collection   string
	SectionIndex int
	FieldIndex   int
}

// Index is an id lookup built over a document snapshot. It is invalidated by
// any mutation of the document it was built from.
type Index struct {
	Sections   map[string]int
	Categories map[string]int
	Fields     map[string][]FieldLocation
}

// Index builds id lookups for sections, categories and fields. A field id
// that occurs more than once has several locations.
func (c *FormConfiguration) Index() Index {
	idx := Index{
		Sections:   make(map[string]int, len(c.Sections)),
		Categories: make(map[string]int, len(c.RequiredDocuments.Categories)),
		Fields:     make(map[string][]FieldLocation),
	}
	for si, s := range c.Sections {
		if _, seen := idx.Sections[s.ID]; !seen {
			idx.Sections[s.ID] = si
		}
		for fi, f := range s.Fields {
			idx.Fields[f.ID] = append(idx.Fields[f.ID], FieldLocation{Collection: InSection, SectionIndex: si, FieldIndex: fi})
		}
	}
	for fi, f := range c.ValidationFields {
		idx.Fields[f.ID] = append(idx.Fields[f.ID], FieldLocation{Collection: InValidation, SectionIndex: -1, FieldIndex: fi})
	}
	for ci, cat := range c.RequiredDocuments.Categories {
		if _, seen := idx.Categories[cat.ID]; !seen {
			idx.Categories[cat.ID] = ci
		}
	}
	return idx
}

// Field resolves a location back to the field it points at.
func (c *FormConfiguration) Field(loc FieldLocation) Field {
	if loc.Collection == InValidation {
		return c.ValidationFields[loc.FieldIndex]
	}
	return c.Sections[loc.SectionIndex].Fields[loc.FieldIndex]
}

// FieldByID returns the effective definition of a field id. When an id is
// present both in a section and in validationFields the validation field
// wins, matching what dedupe keeps.
func (c *FormConfiguration) FieldByID(id string) (Field, bool) {
	for _, f := range c.ValidationFields {
		if f.ID == id {
			return f, true
		}
	}
	for _, s := range c.Sections {
		for _, f := range s.Fields {
			if f.ID == id {
				return f, true
			}
		}
	}
	return Field{}, false
}
