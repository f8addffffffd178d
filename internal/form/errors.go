// internal/form/errors.go
//
// Error taxonomy for the forms engine.
//
//   •  SchemaError       – construction failure (unknown type, malformed element).
//   •  ValidationErrors  – per-field messages, never thrown past the processor.
//   •  SecurityRejection – whole-submission refusal (rate limit, upload policy).
//
// Anything else reaching the processor is treated as unexpected and reported
// to the submitter as one generic message.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownElementType is wrapped by SchemaError for types outside the closed set.
	ErrUnknownElementType = errors.New("unknown element type")

	// ErrFormNotFound is returned by repositories when no form matches an ID.
	ErrFormNotFound = errors.New("form not found")
)

// SchemaError reports an element or definition that cannot be constructed.
type SchemaError struct {
	ElementID string
	Type      string
	Reason    string
	Err       error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema error")
	if e.ElementID != "" {
		fmt.Fprintf(&b, ": element %q", e.ElementID)
	}
	if e.Type != "" {
		fmt.Fprintf(&b, " (type %q)", e.Type)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *SchemaError) Unwrap() error { return e.Err }

// ValidationErrors maps field name → ordered failure messages.
type ValidationErrors map[string][]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for k := range v {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// Add appends msg to field.
func (v ValidationErrors) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

// IsValidationError reports whether err (or anything it wraps) is a
// ValidationErrors value.
func IsValidationError(err error) bool {
	var ve ValidationErrors
	return errors.As(err, &ve)
}

// RejectionKind distinguishes security refusals.
type RejectionKind string

const (
	RejectRateLimit RejectionKind = "rate_limit"
	RejectUpload    RejectionKind = "upload"
)

// SecurityRejection refuses a whole submission.  Reason is for server logs
// only and never reaches the submitter.
type SecurityRejection struct {
	Kind   RejectionKind
	Field  string
	Reason string
}

func (r *SecurityRejection) Error() string {
	if r.Field != "" {
		return fmt.Sprintf("%s rejected (%s): %s", r.Kind, r.Field, r.Reason)
	}
	return fmt.Sprintf("%s rejected: %s", r.Kind, r.Reason)
}

// IsSecurityRejection unwraps err into a *SecurityRejection.
func IsSecurityRejection(err error) (*SecurityRejection, bool) {
	var r *SecurityRejection
	ok := errors.As(err, &r)
	return r, ok
}
