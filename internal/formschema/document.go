// Package formschema holds the typed service-form configuration document:
// sections and fields, validation-only fields, document requirement
// categories and the field-label to rule-context-key mapping.
//
// Slices are the order of truth for rendering and drag-reorder. Index gives
// id lookups over a document without introducing a separate order field.
package formschema

import "time"

// Section groups fields on the primary form. Field order is render order.
type Section struct {
	ID           string  `json:"id"`
	SectionTitle string  `json:"sectionTitle"`
	Fields       []Field `json:"fields"`
}

// Clone returns a deep copy of the section.
func (s Section) Clone() Section {
	out := s
	out.Fields = cloneFields(s.Fields)
	if out.Fields == nil {
		out.Fields = []Field{}
	}
	return out
}

// DocumentItem is one uploadable document requirement.
type DocumentItem struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	IsMandatory       bool     `json:"isMandatory"`
	AcceptedFileTypes []string `json:"acceptedFileTypes"`
}

// Clone returns a deep copy of the item.
func (d DocumentItem) Clone() DocumentItem {
	out := d
	if d.AcceptedFileTypes != nil {
		out.AcceptedFileTypes = append(make([]string, 0, len(d.AcceptedFileTypes)), d.AcceptedFileTypes...)
	}
	return out
}

// DocumentCategory groups document requirements.
type DocumentCategory struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Documents   []DocumentItem `json:"documents"`
}

// Clone returns a deep copy of the category.
func (c DocumentCategory) Clone() DocumentCategory {
	out := c
	out.Documents = make([]DocumentItem, len(c.Documents))
	for i, d := range c.Documents {
		out.Documents[i] = d.Clone()
	}
	return out
}

// RequiredDocuments wraps the ordered category list.
type RequiredDocuments struct {
	Categories []DocumentCategory `json:"categories"`
}

// Metadata is stamped on save and on export.
type Metadata struct {
	Version        int        `json:"version"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	CreatedBy      string     `json:"createdBy,omitempty"`
	LastModifiedAt *time.Time `json:"lastModifiedAt,omitempty"`
	LastModifiedBy string     `json:"lastModifiedBy,omitempty"`
	VersionNotes   string     `json:"versionNotes,omitempty"`
}

// FormConfiguration is the per-product aggregate: the unit of persistence,
// versioning, import and export.
type FormConfiguration struct {
	Metadata           *Metadata          `json:"metadata,omitempty"`
	Sections           []Section          `json:"sections"`
	ValidationFields   []ValidationField  `json:"validationFields"`
	RequiredDocuments  RequiredDocuments  `json:"requiredDocuments"`
	RuleContextMapping RuleContextMapping `json:"ruleContextMapping"`
}

// New returns an empty document with every collection initialized.
func New() *FormConfiguration {
	return &FormConfiguration{
		Sections:           []Section{},
		ValidationFields:   []ValidationField{},
		RequiredDocuments:  RequiredDocuments{Categories: []DocumentCategory{}},
		RuleContextMapping: RuleContextMapping{Mapping: map[string]string{}},
	}
}

// Normalize replaces nil collections with empty ones so encoded documents
// always carry the full top-level shape.
func (c *FormConfiguration) Normalize() *FormConfiguration {
	if c == nil {
		return New()
	}
	if c.Sections == nil {
		c.Sections = []Section{}
	}
	for i := range c.Sections {
		if c.Sections[i].Fields == nil {
			c.Sections[i].Fields = []Field{}
		}
	}
	if c.ValidationFields == nil {
		c.ValidationFields = []ValidationField{}
	}
	if c.RequiredDocuments.Categories == nil {
		c.RequiredDocuments.Categories = []DocumentCategory{}
	}
	for i := range c.RequiredDocuments.Categories {
		if c.RequiredDocuments.Categories[i].Documents == nil {
			c.RequiredDocuments.Categories[i].Documents = []DocumentItem{}
		}
	}
	if c.RuleContextMapping.Mapping == nil {
		c.RuleContextMapping.Mapping = map[string]string{}
	}
	return c
}

// Clone returns a deep copy. Mutation helpers always work on clones so a
// rejected edit never leaves the caller's document half-changed.
func (c *FormConfiguration) Clone() *FormConfiguration {
	if c == nil {
		return New()
	}
	out := &FormConfiguration{}
	if c.Metadata != nil {
		md := *c.Metadata
		md.CreatedAt = cloneTime(c.Metadata.CreatedAt)
		md.LastModifiedAt = cloneTime(c.Metadata.LastModifiedAt)
		out.Metadata = &md
	}
	out.Sections = make([]Section, len(c.Sections))
	for i, s := range c.Sections {
		out.Sections[i] = s.Clone()
	}
	out.ValidationFields = cloneFields(c.ValidationFields)
	out.RequiredDocuments.Categories = make([]DocumentCategory, len(c.RequiredDocuments.Categories))
	for i, cat := range c.RequiredDocuments.Categories {
		out.RequiredDocuments.Categories[i] = cat.Clone()
	}
	out.RuleContextMapping = c.RuleContextMapping.Clone()
	return out.Normalize()
}

// AllFields returns section fields in render order followed by the
// validation-only fields.
func (c *FormConfiguration) AllFields() []Field {
	if c == nil {
		return nil
	}
	var out []Field
	for _, s := range c.Sections {
		out = append(out, s.Fields...)
	}
	out = append(out, c.ValidationFields...)
	return out
}

// SectionByID returns the section position, or -1.
func (c *FormConfiguration) SectionByID(id string) int {
	for i, s := range c.Sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// CategoryByID returns the category position, or -1.
func (c *FormConfiguration) CategoryByID(id string) int {
	for i, cat := range c.RequiredDocuments.Categories {
		if cat.ID == id {
			return i
		}
	}
	return -1
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
