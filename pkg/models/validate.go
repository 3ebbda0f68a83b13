package models

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/fidde/codesnip/internal/complexity"
	"github.com/go-playground/validator/v10"
)

// validate is shared by all request types. validator caches struct metadata
// and is safe for concurrent use.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("complexity", func(fl validator.FieldLevel) bool {
		_, err := complexity.ParseClass(fl.Field().String())
		return err == nil
	})
}

// ValidationError carries per-field messages for a rejected request.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for field, keeping the first one reported.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Add(fieldKey(fe), message(fe))
	}
	return out
}

// fieldKey turns "SnippetInput.tags[2]" into "tags".
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if i := strings.Index(ns, "["); i >= 0 {
		ns = ns[:i]
	}
	return ns
}

var fieldLabels = map[string]string{
	"email":        "Email",
	"password":     "Password",
	"display_name": "Display name",
	"title":        "Title",
	"code":         "Code",
	"language":     "Language",
	"topic":        "Topic",
	"tags":         "Tag",
	"complexity":   "Complexity",
}

func message(fe validator.FieldError) string {
	field := fieldKey(fe)
	label, ok := fieldLabels[field]
	if !ok {
		label = field
	}

	switch fe.Tag() {
	case "required":
		switch field {
		case "language":
			return "Please select a language"
		case "code":
			return "Code is required"
		}
		return label + " is required"
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		if field == "tags" && fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Maximum %s tags allowed", fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "complexity":
		return fmt.Sprintf("Unknown complexity class %q", fe.Value())
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}
