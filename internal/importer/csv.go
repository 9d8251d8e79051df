package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"onboarding-forms/internal/formschema"
)

const defaultSection = "imported"

type csvRow struct {
	section string
	field   formschema.Field
}

// parseCSV reads a header row and one field per line. Recognized columns:
// section, id, label, fieldType, required, options, requiredAtStage,
// placeholder, helperText, conditionalGroup, dependsOn, showWhen. Lists are
// pipe separated.
func parseCSV(data []byte) ([]csvRow, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["id"]; !ok {
		return nil, errors.New("CSV header must include an id column")
	}

	var rows []csvRow
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		f := formschema.Field{
			ID:               get("id"),
			Label:            get("label"),
			FieldType:        formschema.FieldType(strings.ToLower(get("fieldtype"))),
			Placeholder:      get("placeholder"),
			HelperText:       get("helpertext"),
			ConditionalGroup: get("conditionalgroup"),
			Options:          splitList(get("options")),
		}
		if f.FieldType == "" {
			f.FieldType = formschema.FieldText
		}
		if raw := get("required"); raw != "" {
			required, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("CSV line %d: required must be true or false, got %q", line, raw)
			}
			f.Required = required
		}
		for _, s := range splitList(get("requiredatstage")) {
			f.RequiredAtStage = append(f.RequiredAtStage, formschema.Stage(s))
		}
		if dep := get("dependson"); dep != "" {
			f.ConditionalDisplay = &formschema.ConditionalDisplay{DependsOn: dep, ShowWhen: splitList(get("showwhen"))}
		}

		section := get("section")
		if section == "" {
			section = defaultSection
		}
		rows = append(rows, csvRow{section: section, field: f})
	}
	return rows, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, "|") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// documentFromRows keeps sections in order of first appearance.
func documentFromRows(rows []csvRow) *formschema.FormConfiguration {
	cfg := formschema.New()
	for _, row := range rows {
		si := cfg.SectionByID(row.section)
		if si < 0 {
			cfg.Sections = append(cfg.Sections, formschema.Section{ID: row.section, SectionTitle: titleize(row.section), Fields: []formschema.Field{}})
			si = len(cfg.Sections) - 1
		}
		cfg.Sections[si].Fields = append(cfg.Sections[si].Fields, row.field)
	}
	return cfg
}

func titleize(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
