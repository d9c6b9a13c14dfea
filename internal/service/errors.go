package service

import (
	"strings"

	"notely-server/internal/domain"
)

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.NewValidationError(field, "%s is required", field)
	}
	return nil
}

// requireOptionalText accepts an absent value but rejects a blank one.
func requireOptionalText(field string, value *string) error {
	if value != nil && strings.TrimSpace(*value) == "" {
		return domain.NewValidationError(field, "%s cannot be empty", field)
	}
	return nil
}
