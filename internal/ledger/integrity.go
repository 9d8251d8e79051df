package ledger

import (
	"fmt"
	"sort"

	"onboarding-forms/internal/formschema"
)

// AnomalyKind classifies a numbering problem in a history.
type AnomalyKind string

const (
	AnomalyGap       AnomalyKind = "gap"
	AnomalyDuplicate AnomalyKind = "duplicate"
)

// Anomaly is a version-number irregularity. Under single-writer operation
// none occur; one means two writes raced for the same product.
type Anomaly struct {
	ProductID     string      `json:"productId"`
	Kind          AnomalyKind `json:"kind"`
	VersionNumber int         `json:"versionNumber"`
	Detail        string      `json:"detail"`
}

// CheckIntegrity reports gaps and duplicates in a product history. The input
// may be in any order and is not modified.
func CheckIntegrity(history []formschema.VersionEntry) []Anomaly {
	if len(history) == 0 {
		return nil
	}
	numbers := make([]int, len(history))
	for i, e := range history {
		numbers[i] = e.VersionNumber
	}
	sort.Ints(numbers)
	productID := history[0].ProductID

	var out []Anomaly
	expected := 1
	for i, n := range numbers {
		if i > 0 && n == numbers[i-1] {
			out = append(out, Anomaly{
				ProductID:     productID,
				Kind:          AnomalyDuplicate,
				VersionNumber: n,
				Detail:        fmt.Sprintf("version %d recorded more than once", n),
			})
			continue
		}
		if n > expected {
			out = append(out, Anomaly{
				ProductID:     productID,
				Kind:          AnomalyGap,
				VersionNumber: n,
				Detail:        fmt.Sprintf("versions %d to %d are missing", expected, n-1),
			})
		}
		expected = n + 1
	}
	return out
}
