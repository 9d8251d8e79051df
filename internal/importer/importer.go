// Package importer turns uploaded files into form configurations or
// snippets. JSON and YAML carry the document or fragment shape directly; a
// CSV is a flat field list grouped into sections by a "section" column.
package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"onboarding-forms/internal/formschema"
	"onboarding-forms/internal/patch"
)

// Format is the file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts a format name or a file extension.
func ParseFormat(raw string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), ".") {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported import format %q", raw)
}

// DetectFormat uses the file extension, then sniffs the content: a leading
// brace or bracket is JSON, anything else is YAML.
func DetectFormat(filename string, data []byte) Format {
	if f, err := ParseFormat(filepath.Ext(filename)); err == nil {
		return f
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// ToJSON converts a JSON or YAML payload to JSON bytes.
func ToJSON(format Format, data []byte) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		out, err := json.Marshal(jsonCompatible(v))
		if err != nil {
			return nil, fmt.Errorf("failed to convert YAML to JSON: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("format %s has no JSON form", format)
}

// jsonCompatible rewrites map[any]any nodes, which yaml produces for
// non-string keys, into map[string]any.
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = jsonCompatible(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = jsonCompatible(val)
		}
		return t
	}
	return v
}

// Document decodes a whole document from any supported format. The report
// carries structural issues; a report with errors still returns the decoded
// document so callers can show it, but it must not be saved.
func Document(format Format, data []byte) (*formschema.FormConfiguration, formschema.Report, error) {
	if format == FormatCSV {
		fields, err := parseCSV(data)
		if err != nil {
			return nil, formschema.Report{}, err
		}
		cfg := documentFromRows(fields)
		return cfg, formschema.Validate(cfg), nil
	}
	raw, err := ToJSON(format, data)
	if err != nil {
		return nil, formschema.Report{}, err
	}
	return formschema.Decode(raw)
}

// Snippet builds a snippet from a JSON or YAML fragment. An empty kind is
// inferred from the fragment's keys. A CSV yields a section snippet holding
// every row.
func Snippet(format Format, data []byte, kind patch.Kind, target patch.Target) (patch.Snippet, error) {
	if format == FormatCSV {
		rows, err := parseCSV(data)
		if err != nil {
			return patch.Snippet{}, err
		}
		doc := documentFromRows(rows)
		if len(doc.Sections) != 1 {
			return patch.Snippet{}, fmt.Errorf("CSV snippet must describe exactly one section, found %d", len(doc.Sections))
		}
		frag, err := json.Marshal(doc.Sections[0])
		if err != nil {
			return patch.Snippet{}, fmt.Errorf("failed to encode section: %w", err)
		}
		return patch.Snippet{Kind: patch.KindSection, Fragment: frag, Target: target}, nil
	}

	raw, err := ToJSON(format, data)
	if err != nil {
		return patch.Snippet{}, err
	}
	if kind == "" {
		kind, err = InferKind(raw)
		if err != nil {
			return patch.Snippet{}, err
		}
	}
	return patch.Snippet{Kind: kind, Fragment: json.RawMessage(raw), Target: target}, nil
}

// InferKind guesses the snippet kind from a JSON object's keys: "fields"
// means a section, "documents" a document category, "fieldType" a field. A
// field that carries requiredAtStage without a section target is still a
// field; validation fields must be named explicitly.
func InferKind(fragment []byte) (patch.Kind, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(fragment, &keys); err != nil {
		return "", fmt.Errorf("snippet must be a JSON object: %w", err)
	}
	has := func(k string) bool { _, ok := keys[k]; return ok }
	switch {
	case has("sections") || has("validationFields") || has("requiredDocuments"):
		return "", fmt.Errorf("fragment looks like a whole document; import it as a document instead")
	case has("fields"):
		return patch.KindSection, nil
	case has("documents"):
		return patch.KindDocumentCategory, nil
	case has("fieldType"):
		return patch.KindField, nil
	}
	return "", fmt.Errorf("cannot infer snippet kind; pass one of %v", patch.Kinds())
}
