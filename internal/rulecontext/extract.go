// Package rulecontext builds the flat context map handed to the external
// risk/decision service from filled-in form values.
package rulecontext

import (
	"fmt"
	"sort"
	"strings"

	"onboarding-forms/internal/formschema"
	"onboarding-forms/internal/resolver"
)

// Canonical context keys produced by the fallback heuristics.
const (
	KeyLocationType      = "locationType"
	KeyEmirate           = "emirate"
	KeyActivityRiskLevel = "activityRiskLevel"
	KeyNationality       = "nationality"
)

// Source tells how a context key got its value.
type Source string

const (
	SourceMapping   Source = "mapping"
	SourceHeuristic Source = "heuristic"
)

// Assignment records one context key set during extraction.
type Assignment struct {
	Key     string `json:"key"`
	Value   any    `json:"value"`
	Source  Source `json:"source"`
	Label   string `json:"label"`
	FieldID string `json:"fieldId,omitempty"`
	Rule    string `json:"rule,omitempty"`
}

// Extract returns contextKey → value. values may be keyed by field id or by
// field label.
func Extract(cfg *formschema.FormConfiguration, values map[string]any) map[string]any {
	out := make(map[string]any)
	for _, a := range Explain(cfg, values) {
		out[a.Key] = a.Value
	}
	return out
}

// Explain runs the extraction and reports every assignment in the order it
// was made. Explicit mappings are applied first. A blank value never claims
// a key; false and 0 are real answers and are copied. Heuristics then run over
// the remaining inputs in schema order, followed by inputs that match no
// field in key order. Each input is matched by at most one heuristic, and a
// key that is already set is never overwritten.
func Explain(cfg *formschema.FormConfiguration, values map[string]any) []Assignment {
	if cfg == nil {
		cfg = formschema.New()
	}
	inputs := collectInputs(cfg, values)
	assigned := make(map[string]bool)
	mappedLabels := make(map[string]bool)
	var out []Assignment

	inverse := cfg.RuleContextMapping.Inverse()
	keys := make([]string, 0, len(inverse))
	for key := range inverse {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, label := range inverse[key] {
			mappedLabels[label] = true
			if assigned[key] {
				continue
			}
			in, ok := findByLabel(inputs, label)
			if !ok {
				continue
			}
			assigned[key] = true
			out = append(out, Assignment{Key: key, Value: in.value, Source: SourceMapping, Label: label, FieldID: in.fieldID})
		}
	}

	for _, in := range inputs {
		if mappedLabels[in.label] || blank(in.value) {
			continue
		}
		rule, value, ok := matchHeuristic(in)
		if !ok || assigned[rule.key] {
			continue
		}
		assigned[rule.key] = true
		out = append(out, Assignment{Key: rule.key, Value: value, Source: SourceHeuristic, Label: in.label, FieldID: in.fieldID, Rule: rule.name})
	}
	return out
}

type input struct {
	fieldID string
	label   string
	key     string
	value   any
}

// collectInputs pairs every provided value with its field. Values keyed by
// id win over values keyed by label for the same field.
func collectInputs(cfg *formschema.FormConfiguration, values map[string]any) []input {
	used := make(map[string]bool)
	var inputs []input
	for _, f := range cfg.EffectiveFields() {
		if v, ok := values[f.ID]; ok {
			used[f.ID] = true
			inputs = append(inputs, input{fieldID: f.ID, label: f.Label, key: f.ID, value: v})
			continue
		}
		if v, ok := values[f.Label]; ok && f.Label != "" {
			used[f.Label] = true
			inputs = append(inputs, input{fieldID: f.ID, label: f.Label, key: f.Label, value: v})
		}
	}

	var rest []string
	for k := range values {
		if !used[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		inputs = append(inputs, input{label: k, key: k, value: values[k]})
	}
	return inputs
}

// blank is nil, a whitespace string or a list of blanks.
func blank(v any) bool {
	switch val := v.(type) {
	case bool, float64, int:
		return false
	case []any:
		for _, item := range val {
			if !blank(item) {
				return false
			}
		}
		return true
	}
	return resolver.IsEmpty(v)
}

func findByLabel(inputs []input, label string) (input, bool) {
	for _, in := range inputs {
		if in.label == label && !blank(in.value) {
			return in, true
		}
	}
	return input{}, false
}

type heuristic struct {
	name     string
	key      string
	keywords []string
	// value derives the context value; false means the rule does not apply.
	value func(v any) (any, bool)
}

var heuristics = []heuristic{
	{
		name:     "license/location",
		key:      KeyLocationType,
		keywords: []string{"license", "licence", "location"},
		value: func(v any) (any, bool) {
			s := strings.ToLower(fmt.Sprint(v))
			switch {
			case strings.Contains(s, "freezone") || strings.Contains(s, "free zone"):
				return "Freezone", true
			case strings.Contains(s, "mainland"):
				return "Mainland", true
			}
			return nil, false
		},
	},
	{name: "jurisdiction/emirate", key: KeyEmirate, keywords: []string{"jurisdiction", "emirate"}, value: verbatim},
	{name: "risk", key: KeyActivityRiskLevel, keywords: []string{"risk"}, value: verbatim},
	{name: "nationality", key: KeyNationality, keywords: []string{"nationality"}, value: verbatim},
}

func verbatim(v any) (any, bool) { return v, true }

func matchHeuristic(in input) (heuristic, any, bool) {
	haystack := strings.ToLower(in.label + " " + in.key)
	for _, h := range heuristics {
		if !containsAny(haystack, h.keywords) {
			continue
		}
		if v, ok := h.value(in.value); ok {
			return h, v, true
		}
	}
	return heuristic{}, nil, false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
