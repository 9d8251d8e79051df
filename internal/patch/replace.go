package patch

import (
	"errors"

	"onboarding-forms/internal/formschema"
)

// ReplaceWholeDocument validates next and, when it has no blocking errors,
// returns a copy of it to become the live document. On rejection current is
// returned unchanged together with the report.
func ReplaceWholeDocument(current, next *formschema.FormConfiguration) (*formschema.FormConfiguration, formschema.Report, error) {
	report := formschema.Validate(next)
	if report.HasErrors() {
		return current, report, &RejectedError{
			Kind:   "document",
			Reason: "document has structural errors",
			Issues: report.Errors(),
		}
	}
	return next.Clone(), report, nil
}

// IsRejected reports whether err is a rejected edit.
func IsRejected(err error) bool {
	var rej *RejectedError
	return errors.As(err, &rej)
}
