// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	instance     *validator.Validate
	instanceOnce sync.Once
)

// FieldError is one failed rule on one field.
type FieldError struct {
	field   string
	tag     string
	message string
}

// Field returns the dotted koanf path of the field, without the root type.
func (e *FieldError) Field() string { return e.field }

// Tag returns the rule that failed, e.g. "min" or "unit".
func (e *FieldError) Tag() string { return e.tag }

func (e *FieldError) Error() string { return e.message }

// StructError collects every FieldError of one ValidateStruct call.
type StructError struct {
	errors []FieldError
}

// Errors returns the individual field failures in declaration order.
func (se *StructError) Errors() []FieldError { return se.errors }

func (se *StructError) Error() string {
	if len(se.errors) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(se.errors))
	for i := range se.errors {
		parts[i] = se.errors[i].message
	}
	return strings.Join(parts, "; ")
}

// Validator returns the shared validator, building it on first use.
func Validator() *validator.Validate {
	instanceOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(keyName)
		//nolint:errcheck // registration only fails on an empty tag
		_ = v.RegisterValidation("unit", unitInterval)
		instance = v
	})
	return instance
}

// keyName reports a field by its koanf key, then its json key, then its Go name.
func keyName(fld reflect.StructField) string {
	for _, tag := range []string{"koanf", "json"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		if name == "-" {
			return fld.Name
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// unitInterval accepts floats in [0, 1].
func unitInterval(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() != reflect.Float32 && f.Kind() != reflect.Float64 {
		return false
	}
	return f.Float() >= 0 && f.Float() <= 1
}

// ValidateStruct runs the shared validator over s. It returns nil when s is
// valid.
func ValidateStruct(s any) *StructError {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &StructError{errors: []FieldError{{field: "", tag: "", message: err.Error()}}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		path := fe.Namespace()
		if _, rest, ok := strings.Cut(path, "."); ok {
			path = rest
		}
		out = append(out, FieldError{field: path, tag: fe.Tag(), message: describe(fe, path)})
	}
	return &StructError{errors: out}
}

func describe(fe validator.FieldError, path string) string {
	p := fe.Param()
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		return path + " is required"
	case "unit":
		return path + " must be in [0, 1]"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", path, p)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s%s", path, p, unit)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s%s", path, p, unit)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", path, p)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", path, p)
	default:
		return fmt.Sprintf("%s failed %s validation", path, fe.Tag())
	}
}
