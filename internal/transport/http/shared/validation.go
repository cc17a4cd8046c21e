package shared

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"leavedesk/internal/transport/http/api"
)

// FieldError is one rejected field in a validation_error response.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Validator collects field errors so a request is rejected once with
// every problem listed, not on the first bad field.
type Validator struct {
	errs []FieldError
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Fail(field, reason string) {
	v.errs = append(v.errs, FieldError{Field: field, Reason: reason})
}

func (v *Validator) Require(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Fail(field, "is required")
	}
}

// OneOf rejects a non-empty value that is not in the allowed set.
// Matching is case-insensitive; empty values are left to Require.
func (v *Validator) OneOf(field, value string, allowed ...string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return
		}
	}
	v.Fail(field, "must be one of: "+strings.Join(allowed, ", "))
}

func (v *Validator) Date(field, raw string) (time.Time, bool) {
	parsed, err := ParseDate(strings.TrimSpace(raw))
	if err != nil || parsed.IsZero() {
		v.Fail(field, "must be a valid date in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return parsed, true
}

func (v *Validator) Ordered(startField string, start time.Time, endField string, end time.Time) {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		v.Fail(endField, "must be on or after "+startField)
	}
}

// Reject writes a 400 with all collected field errors and reports
// whether the request was rejected.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if len(v.errs) == 0 {
		return false
	}
	fields := make([]FieldError, len(v.errs))
	copy(fields, v.errs)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed",
		map[string]any{"fields": fields}, requestID)
	return true
}
