package resolver

// Gap is one unmet requirement blocking submission at the resolved stage:
// either a single required field or an unsatisfied conditional group.
type Gap struct {
	FieldID string   `json:"fieldId,omitempty"`
	Group   string   `json:"group,omitempty"`
	Members []string `json:"members,omitempty"`
}

// Missing lists required fields without a value, then required groups where
// no visible member has a value. Both follow schema order.
func (r Result) Missing(values Values) []Gap {
	var gaps []Gap
	for _, id := range r.order {
		if r.RequiredNow.Has(id) && IsEmpty(values[id]) {
			gaps = append(gaps, Gap{FieldID: id})
		}
	}
	for _, name := range r.groupOrder {
		g := r.Groups[name]
		if g.Required && !g.Satisfied {
			gaps = append(gaps, Gap{Group: name, Members: append([]string(nil), g.Members...)})
		}
	}
	return gaps
}

// Complete reports whether nothing blocks submission.
func (r Result) Complete(values Values) bool {
	return len(r.Missing(values)) == 0
}
