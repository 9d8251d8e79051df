package formschema

// EffectiveFields returns one definition per field id in schema order:
// section fields first, then validation-only fields. When an id lives in both
// places the validationFields definition is used at the section position.
func (c *FormConfiguration) EffectiveFields() []Field {
	if c == nil {
		return nil
	}
	validation := make(map[string]Field, len(c.ValidationFields))
	for _, f := range c.ValidationFields {
		if _, seen := validation[f.ID]; !seen {
			validation[f.ID] = f
		}
	}
	seen := make(map[string]bool)
	var out []Field
	for _, s := range c.Sections {
		for _, f := range s.Fields {
			if seen[f.ID] {
				continue
			}
			seen[f.ID] = true
			if v, ok := validation[f.ID]; ok {
				f = v
			}
			out = append(out, f)
		}
	}
	for _, f := range c.ValidationFields {
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		out = append(out, f)
	}
	return out
}

// DependencyGraph maps each conditionally displayed field id to the id it
// depends on. Every node has at most one outgoing edge.
func DependencyGraph(c *FormConfiguration) map[string]string {
	graph := make(map[string]string)
	for _, f := range c.EffectiveFields() {
		if f.ConditionalDisplay != nil && f.ConditionalDisplay.DependsOn != "" {
			graph[f.ID] = f.ConditionalDisplay.DependsOn
		}
	}
	return graph
}

// FindCycles returns each dependsOn cycle once, as the ids on the cycle in
// edge order. Discovery follows schema order so the result is stable.
func FindCycles(c *FormConfiguration) [][]string {
	graph := DependencyGraph(c)
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int)
	var cycles [][]string
	for _, f := range c.EffectiveFields() {
		if state[f.ID] != unvisited {
			continue
		}
		var path []string
		id := f.ID
		for {
			if state[id] == done {
				break
			}
			if state[id] == onPath {
				for i, p := range path {
					if p == id {
						cycles = append(cycles, append([]string(nil), path[i:]...))
						break
					}
				}
				break
			}
			state[id] = onPath
			path = append(path, id)
			next, ok := graph[id]
			if !ok {
				break
			}
			id = next
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return cycles
}
