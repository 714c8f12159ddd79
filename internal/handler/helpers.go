package handler

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// formatValidationErrors converts validator errors into a field → message map.
func formatValidationErrors(err error) map[string]string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		out[fe.Field()] = fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
	return out
}
