package entity

import (
	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground/validator, translating its
// ValidationErrors into the pipeline's own
// *ValidationErrors so callers never see a third-party type.
type Validator struct {
	v *validator.Validate
}

// NewValidator constructs a Validator with the library's default tag registry.
func NewValidator() *Validator {
	return &Validator{v: validator.New()}
}

// Struct validates rec's `validate:"..."` tags, returning a *ValidationErrors
// keyed by field name on failure.
func (vd *Validator) Struct(op string, rec any) error {
	if err := vd.v.Struct(rec); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return Internal(op, err)
		}
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[fe.Field()] = fe.Tag()
		}
		return &ValidationErrors{Op: op, Fields: fields}
	}
	return nil
}
