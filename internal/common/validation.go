package common

import "strings"

// FieldError describes a single rejected request field.
type FieldError struct {
	Field string `json:"path"`
	Msg   string `json:"msg"`
}

// ValidationError collects field-level problems of a request body.
// It matches ErrorValidation via errors.Is.
type ValidationError struct {
	Fields []FieldError
}

// Add records a problem with field.
func (v *ValidationError) Add(field, msg string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Msg: msg})
}

// Empty reports whether no problems were recorded.
func (v *ValidationError) Empty() bool {
	return len(v.Fields) == 0
}

// OrNil returns v as an error when it has fields, nil otherwise.
func (v *ValidationError) OrNil() error {
	if v.Empty() {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	msgs := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		msgs = append(msgs, f.Field+": "+f.Msg)
	}
	return "validation error: " + strings.Join(msgs, "; ")
}

func (v *ValidationError) Unwrap() error {
	return ErrorValidation
}
