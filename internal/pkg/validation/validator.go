package validation

import (
	"fmt"
	"strings"

	tmserrors "github.com/NikitaDmitryuk/media-relay/internal/core/errors"
)

// Validator collects errors from chained checks. The first error wins when reporting.
type Validator struct {
	errors []error
}

func NewValidator() *Validator {
	return &Validator{
		errors: make([]error, 0),
	}
}

func (v *Validator) AddError(err error) {
	v.errors = append(v.errors, err)
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// GetFirstError returns the first collected error or nil.
func (v *Validator) GetFirstError() error {
	if len(v.errors) > 0 {
		return v.errors[0]
	}
	return nil
}

// ValidateVideoURL adds an invalid URL error unless value is a supported video URL.
func (v *Validator) ValidateVideoURL(value string) *Validator {
	if err := ValidateVideoURL(value); err != nil {
		v.AddError(err)
	}
	return v
}

func (v *Validator) ValidateMaxLength(value, fieldName string, maxLength int) *Validator {
	if len(value) > maxLength {
		v.AddError(tmserrors.NewDomainError(
			tmserrors.ErrorTypeValidation,
			"max_length",
			fmt.Sprintf("%s must be no more than %d characters long", fieldName, maxLength),
		).WithDetails(map[string]any{
			"field":      fieldName,
			"max_length": maxLength,
			"actual":     len(value),
		}).WithUserMessage(fmt.Sprintf("%s is too long", fieldName)))
	}
	return v
}

// ValidateOneOf checks value case-insensitively against allowed. Empty values pass.
func (v *Validator) ValidateOneOf(value, fieldName string, allowed []string, onFail func(string) error) *Validator {
	if value == "" {
		return v
	}
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return v
		}
	}
	if onFail != nil {
		v.AddError(onFail(value))
		return v
	}
	v.AddError(tmserrors.NewDomainError(
		tmserrors.ErrorTypeValidation,
		"invalid_value",
		fmt.Sprintf("%s must be one of: %s", fieldName, strings.Join(allowed, ", ")),
	).WithDetails(map[string]any{
		"field":   fieldName,
		"value":   value,
		"allowed": allowed,
	}))
	return v
}

// ValidateCustom runs fn and records its error, if any.
func (v *Validator) ValidateCustom(fn func() error) *Validator {
	if err := fn(); err != nil {
		v.AddError(err)
	}
	return v
}
