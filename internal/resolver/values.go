package resolver

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Values holds the current form values keyed by field id. Values arrive
// decoded from JSON, so strings, float64, bool, json.Number and []any are
// the common cases.
type Values map[string]any

// stringsOf flattens a value into the strings used for showWhen matching.
// List values contribute every element.
func stringsOf(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return val
	case []any:
		var out []string
		for _, item := range val {
			out = append(out, stringsOf(item)...)
		}
		return out
	default:
		return []string{stringify(val)}
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// IsEmpty reports whether a value counts as "not filled in". An unchecked
// checkbox (false) is empty; zero is a real number and is not.
func IsEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case bool:
		return !val
	case []string:
		for _, s := range val {
			if strings.TrimSpace(s) != "" {
				return false
			}
		}
		return true
	case []any:
		for _, item := range val {
			if !IsEmpty(item) {
				return false
			}
		}
		return true
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
