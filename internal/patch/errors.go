// Package patch turns edits from every entry point (whole-document import,
// template load, snippet injection, drag reorder, structural edits) into a
// complete next FormConfiguration. Every function works on a clone: the
// document passed in is never modified, and an edit is either applied in
// full or rejected with a *RejectedError.
package patch

import (
	"fmt"
	"strings"

	"onboarding-forms/internal/formschema"
)

// RejectedError reports an edit that was not applied.
type RejectedError struct {
	Kind   string
	Reason string
	Issues []formschema.Issue
}

func (e *RejectedError) Error() string {
	var b strings.Builder
	b.WriteString("patch rejected")
	if e.Kind != "" {
		fmt.Fprintf(&b, " (%s)", e.Kind)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	for _, i := range e.Issues {
		b.WriteString("; ")
		b.WriteString(i.String())
	}
	return b.String()
}

func reject(kind, format string, args ...any) *RejectedError {
	return &RejectedError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}
