// Package validate collects per-field input violations so callers see
// every offending field at once rather than only the first.
package validate

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError names a single violated field and the condition it failed.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error aggregates every field violation found in one request.
type Error struct {
	Fields []FieldError `json:"fields"`
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Collector accumulates violations and produces an *Error only when at
// least one was recorded.
type Collector struct {
	fields []FieldError
}

// Add records a violation for field.
func (c *Collector) Add(field, message string) {
	c.fields = append(c.fields, FieldError{Field: field, Message: message})
}

// Err returns the aggregated error, or nil when nothing was recorded.
func (c *Collector) Err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &Error{Fields: c.fields}
}

// As unwraps err into an *Error when it is one.
func As(err error) (*Error, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
