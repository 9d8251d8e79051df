package formschema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// RuleContextMapping maps a field label to the context key the decisioning
// service expects. A context key is owned by at most one label.
type RuleContextMapping struct {
	Mapping map[string]string `json:"mapping"`
}

// UnmarshalJSON accepts both {"mapping": {...}} and a bare label→key object.
func (m *RuleContextMapping) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		Mapping map[string]string `json:"mapping"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Mapping != nil {
		m.Mapping = wrapped.Mapping
		return nil
	}

	var bare map[string]any
	if err := json.Unmarshal(data, &bare); err != nil {
		return fmt.Errorf("ruleContextMapping: %w", err)
	}
	m.Mapping = make(map[string]string, len(bare))
	for label, raw := range bare {
		if label == "mapping" && raw == nil {
			continue
		}
		key, ok := raw.(string)
		if !ok {
			return fmt.Errorf("ruleContextMapping: value for %q must be a string", label)
		}
		m.Mapping[label] = key
	}
	return nil
}

// Clone returns a deep copy.
func (m RuleContextMapping) Clone() RuleContextMapping {
	out := RuleContextMapping{Mapping: make(map[string]string, len(m.Mapping))}
	for k, v := range m.Mapping {
		out.Mapping[k] = v
	}
	return out
}

// Set assigns label→key. Any other label currently mapped to the same key
// loses it.
func (m *RuleContextMapping) Set(label, key string) {
	if m.Mapping == nil {
		m.Mapping = map[string]string{}
	}
	for existing, k := range m.Mapping {
		if k == key && existing != label {
			delete(m.Mapping, existing)
		}
	}
	m.Mapping[label] = key
}

// Remove drops the mapping for label.
func (m *RuleContextMapping) Remove(label string) {
	delete(m.Mapping, label)
}

// KeyFor returns the context key mapped from label.
func (m RuleContextMapping) KeyFor(label string) (string, bool) {
	key, ok := m.Mapping[label]
	return key, ok && key != ""
}

// Inverse groups labels per context key. Labels are sorted so callers get a
// stable order even for documents imported with duplicate assignments.
func (m RuleContextMapping) Inverse() map[string][]string {
	out := make(map[string][]string)
	for label, key := range m.Mapping {
		if key == "" {
			continue
		}
		out[key] = append(out[key], label)
	}
	for key := range out {
		sort.Strings(out[key])
	}
	return out
}
