package checker

import (
	"fmt"
	"strings"
)

// ValidationError is a contract violation by the checked request. It is the
// only error Check reports with status 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// joinValidationErrors merges the violations found in collect-all mode
func joinValidationErrors(errs []*ValidationError) *ValidationError {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}

	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return &ValidationError{Field: "parameters", Message: strings.Join(msgs, "; ")}
}
