package config

import (
	"reflect"

	agerr "github.com/askgrid/askgrid-core/pkg/errors"
)

// Validator is an optional interface for configuration structs that
// need validation beyond the `required` tag. When the struct passed to
// [Loader.Load] implements Validator, Validate runs after tag-based
// validation succeeds.
//
// Validate should describe the first failure it finds, or return nil.
// A returned [*agerr.Error] passes through unchanged; any other error
// is wrapped with [agerr.CodeValidation].
//
// Example:
//
//	func (c *AuthConfig) Validate() error {
//	    if c.ClockSkew < 0 {
//	        return agerr.Newf(agerr.CodeValidationRange,
//	            "config: clock skew must not be negative, got %s", c.ClockSkew)
//	    }
//	    return nil
//	}
type Validator interface {
	Validate() error
}

// validate enforces required tags, then runs the custom Validator if
// cfg implements it. rv is the dereferenced struct value; cfg is the
// original interface value used for the Validator assertion.
func validate(cfg any, rv reflect.Value) error {
	if err := validateRequired(rv, ""); err != nil {
		return err
	}

	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			if _, isAGErr := agerr.AsError(err); isAGErr {
				return err
			}
			return agerr.Wrap(err, agerr.CodeValidation,
				"config: custom validation failed")
		}
	}

	return nil
}

// validateRequired checks that every field tagged `required:"true"`
// holds a non-zero value, recursing into nested structs. path carries
// the dotted field path for error messages ("Database.Host").
func validateRequired(rv reflect.Value, path string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := validateRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		}

		if sf.Tag.Get("required") != "true" {
			continue
		}

		if field.IsZero() {
			return agerr.Newf(agerr.CodeValidationRequired,
				"config: required field %q is empty", fieldPath)
		}
	}

	return nil
}
