package web

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate caches struct metadata, so one instance serves every handler.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs the `validate` struct tags of v.
func Validate(v any) error {
	return validate.Struct(v)
}

// ValidationMessage renders a validation error as "field: rule" pairs, using
// the json field names. Other errors render as their text.
func ValidationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), rule))
	}
	return strings.Join(parts, "; ")
}
