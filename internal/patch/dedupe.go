package patch

import "onboarding-forms/internal/formschema"

// DedupeReport lists what Dedupe removes from a document.
type DedupeReport struct {
	RemovedFields   []string `json:"removedFields"`
	DroppedSections []string `json:"droppedSections"`
}

// Changed reports whether dedupe has anything to do.
func (r DedupeReport) Changed() bool {
	return len(r.RemovedFields) > 0 || len(r.DroppedSections) > 0
}

// Dedupe removes every id present in validationFields from the sections.
// A section that loses fields and ends up empty is dropped. Sections that
// were already empty stay.
func Dedupe(cfg *formschema.FormConfiguration) *formschema.FormConfiguration {
	out, _ := dedupe(cfg)
	return out
}

// DedupeWithReport is Dedupe plus a description of the removals.
func DedupeWithReport(cfg *formschema.FormConfiguration) (*formschema.FormConfiguration, DedupeReport) {
	return dedupe(cfg)
}

func dedupe(cfg *formschema.FormConfiguration) (*formschema.FormConfiguration, DedupeReport) {
	report := DedupeReport{RemovedFields: []string{}, DroppedSections: []string{}}
	next := cfg.Clone()
	promoted := make(map[string]bool, len(next.ValidationFields))
	for _, f := range next.ValidationFields {
		promoted[f.ID] = true
	}
	if len(promoted) == 0 {
		return next, report
	}

	sections := next.Sections[:0]
	for _, s := range next.Sections {
		var n int
		s.Fields, n = removeWhere(s.Fields, func(f formschema.Field) bool {
			if promoted[f.ID] {
				report.RemovedFields = append(report.RemovedFields, f.ID)
				return true
			}
			return false
		})
		if n > 0 && len(s.Fields) == 0 {
			report.DroppedSections = append(report.DroppedSections, s.ID)
			continue
		}
		sections = append(sections, s)
	}
	next.Sections = sections
	return next, report
}
