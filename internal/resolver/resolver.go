// Package resolver answers "is this field shown?" and "is it mandatory now?"
// for a form configuration at a given lifecycle stage. Resolution is a pure
// function of the document, the stage and the current values; it never
// fails.
package resolver

import (
	"sort"

	"onboarding-forms/internal/formschema"
)

// IDSet is a set of field ids.
type IDSet map[string]struct{}

func (s IDSet) add(id string) { s[id] = struct{}{} }

// Has reports membership.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in lexical order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// GroupStatus is the per-group outcome for fields sharing a conditionalGroup.
type GroupStatus struct {
	Members   []string `json:"members"`
	Required  bool     `json:"required"`
	Satisfied bool     `json:"satisfied"`
}

// Result is the outcome of one Resolve call.
type Result struct {
	Stage        formschema.Stage            `json:"stage"`
	Visible      IDSet                       `json:"-"`
	RequiredNow  IDSet                       `json:"-"`
	Groups       map[string]GroupStatus      `json:"groups"`
	NextRequired map[string]formschema.Stage `json:"nextRequired"`
	Dangling     IDSet                       `json:"-"`
	Cyclic       IDSet                       `json:"-"`

	order      []string
	groupOrder []string
}

// Order returns every resolved field id in schema order.
func (r Result) Order() []string {
	return append([]string(nil), r.order...)
}

// VisibleIDs returns visible field ids in schema order.
func (r Result) VisibleIDs() []string { return r.inOrder(r.Visible) }

// RequiredIDs returns required field ids in schema order.
func (r Result) RequiredIDs() []string { return r.inOrder(r.RequiredNow) }

func (r Result) inOrder(set IDSet) []string {
	out := []string{}
	for _, id := range r.order {
		if set.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// Resolve computes visibility and requiredness for every field of cfg.
//
// Fields are evaluated along the dependsOn graph so a field whose controlling
// field is hidden is hidden too. Fields on a dependsOn cycle, and anything
// depending on them, are hidden. A dependsOn pointing at a field that does
// not exist leaves the field visible but never required. An unknown stage
// activates no stage-gated requirement.
func Resolve(cfg *formschema.FormConfiguration, stage formschema.Stage, values Values) Result {
	stage = formschema.ParseStage(string(stage))
	res := Result{
		Stage:        stage,
		Visible:      IDSet{},
		RequiredNow:  IDSet{},
		Groups:       map[string]GroupStatus{},
		NextRequired: map[string]formschema.Stage{},
		Dangling:     IDSet{},
		Cyclic:       IDSet{},
	}
	if cfg == nil {
		return res
	}

	fields := cfg.EffectiveFields()
	byID := make(map[string]formschema.Field, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
		res.order = append(res.order, f.ID)
	}
	for _, cycle := range formschema.FindCycles(cfg) {
		for _, id := range cycle {
			res.Cyclic.add(id)
		}
	}

	v := &visibility{fields: byID, values: values, cyclic: res.Cyclic, memo: map[string]bool{}, dangling: res.Dangling}
	for _, f := range fields {
		if v.visible(f.ID) {
			res.Visible.add(f.ID)
		}
	}

	for _, f := range fields {
		visible := res.Visible.Has(f.ID)
		eligible := visible && !res.Dangling.Has(f.ID)
		wouldRequire := requiredAt(f, stage)

		if f.InGroup() {
			g, seen := res.Groups[f.ConditionalGroup]
			if !seen {
				res.groupOrder = append(res.groupOrder, f.ConditionalGroup)
			}
			g.Members = append(g.Members, f.ID)
			if eligible && wouldRequire {
				g.Required = true
			}
			if eligible && !IsEmpty(values[f.ID]) {
				g.Satisfied = true
			}
			res.Groups[f.ConditionalGroup] = g
		} else if eligible && wouldRequire {
			res.RequiredNow.add(f.ID)
		}

		if !res.RequiredNow.Has(f.ID) && !res.Dangling.Has(f.ID) {
			if next, ok := nextRequiredStage(f, stage); ok {
				res.NextRequired[f.ID] = next
			}
		}
	}
	return res
}

// requiredAt applies the plain/stage-gated requiredness rule, ignoring
// visibility and groups.
func requiredAt(f formschema.Field, stage formschema.Stage) bool {
	if !f.StageGated() {
		return f.Required
	}
	if !stage.Known() {
		return false
	}
	for _, s := range f.RequiredAtStage {
		if formschema.ParseStage(string(s)) == stage {
			return true
		}
	}
	return false
}

// nextRequiredStage returns the earliest known stage in requiredAtStage that
// comes strictly after stage in canonical order.
func nextRequiredStage(f formschema.Field, stage formschema.Stage) (formschema.Stage, bool) {
	if !f.StageGated() {
		return "", false
	}
	current := stage.Index()
	best := -1
	for _, s := range f.RequiredAtStage {
		idx := formschema.ParseStage(string(s)).Index()
		if idx <= current {
			continue
		}
		if best == -1 || idx < best {
			best = idx
		}
	}
	if best == -1 {
		return "", false
	}
	return formschema.CanonicalStages()[best], true
}

type visibility struct {
	fields   map[string]formschema.Field
	values   Values
	cyclic   IDSet
	dangling IDSet
	memo     map[string]bool
}

// visible terminates because cyclic ids return before recursing and every
// other dependsOn chain is acyclic.
func (v *visibility) visible(id string) bool {
	if res, ok := v.memo[id]; ok {
		return res
	}
	res := v.evaluate(id)
	v.memo[id] = res
	return res
}

func (v *visibility) evaluate(id string) bool {
	if v.cyclic.Has(id) {
		return false
	}
	f := v.fields[id]
	cd := f.ConditionalDisplay
	if cd == nil || cd.DependsOn == "" {
		return true
	}
	if _, ok := v.fields[cd.DependsOn]; !ok {
		v.dangling.add(id)
		return true
	}
	if !v.visible(cd.DependsOn) {
		return false
	}
	for _, have := range stringsOf(v.values[cd.DependsOn]) {
		for _, want := range cd.ShowWhen {
			if have == want {
				return true
			}
		}
	}
	return false
}
