package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"onboarding-forms/internal/formschema"
)

// JSONBDocument wraps a form configuration for JSONB storage.
type JSONBDocument struct {
	*formschema.FormConfiguration
}

// Value implements the driver.Valuer interface for database storage
func (j JSONBDocument) Value() (driver.Value, error) {
	if j.FormConfiguration == nil {
		return nil, errors.New("cannot store a nil form configuration")
	}
	data, err := json.Marshal(j.FormConfiguration)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal form configuration: %w", err)
	}
	return data, nil
}

// Scan implements the sql.Scanner interface for database retrieval
func (j *JSONBDocument) Scan(value interface{}) error {
	if value == nil {
		j.FormConfiguration = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("cannot scan non-string/[]byte value into JSONBDocument")
	}

	var cfg formschema.FormConfiguration
	if err := json.Unmarshal(bytes, &cfg); err != nil {
		return fmt.Errorf("failed to unmarshal form configuration: %w", err)
	}
	j.FormConfiguration = cfg.Normalize()
	return nil
}
