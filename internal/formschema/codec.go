package formschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var topLevelKeys = []string{"validationFields", "requiredDocuments", "ruleContextMapping"}

// Decode parses a JSON form configuration. Malformed JSON is returned as an
// error; shape problems are reported as issues so a caller can list all of
// them at once. The returned document is normalized and may be nil when the
// report holds blocking errors.
func Decode(data []byte) (*FormConfiguration, Report, error) {
	var report Report
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, report, errors.New("failed to parse form configuration: empty input")
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			report.addError("", "document must be a JSON object")
			return nil, report, nil
		}
		return nil, report, fmt.Errorf("failed to parse form configuration: %w", err)
	}

	if raw, ok := top["sections"]; !ok || isNull(raw) {
		report.addError("sections", "sections array is required")
	}
	for _, key := range topLevelKeys {
		if raw, ok := top[key]; !ok || isNull(raw) {
			report.addWarning(key, "%s is missing and defaults to empty", key)
		}
	}

	var cfg FormConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			report.addError(typeErr.Field, "expected %s, got %s", typeErr.Type, typeErr.Value)
			return nil, report, nil
		}
		report.addError("", "%v", err)
		return nil, report, nil
	}
	cfg.Normalize()
	report.Merge(Validate(&cfg))
	return &cfg, report, nil
}

// Encode serializes a document compactly for storage.
func Encode(cfg *FormConfiguration) ([]byte, error) {
	data, err := json.Marshal(cfg.Clone())
	if err != nil {
		return nil, fmt.Errorf("failed to encode form configuration: %w", err)
	}
	return data, nil
}

// Export returns an indented JSON copy of cfg with version, lastModifiedAt
// and lastModifiedBy stamped. cfg itself is not modified.
func Export(cfg *FormConfiguration, version int, by string, now time.Time) ([]byte, error) {
	out := cfg.Clone()
	Stamp(out, version, by, "", now)
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to export form configuration: %w", err)
	}
	return data, nil
}

// Stamp writes save metadata onto cfg. createdAt is kept when already set.
// Empty notes keep the previous notes.
func Stamp(cfg *FormConfiguration, version int, by, notes string, now time.Time) {
	if cfg.Metadata == nil {
		cfg.Metadata = &Metadata{}
	}
	now = now.UTC()
	md := cfg.Metadata
	md.Version = version
	if md.CreatedAt == nil {
		created := now
		md.CreatedAt = &created
		if md.CreatedBy == "" {
			md.CreatedBy = by
		}
	}
	modified := now
	md.LastModifiedAt = &modified
	md.LastModifiedBy = by
	if notes != "" {
		md.VersionNotes = notes
	}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
