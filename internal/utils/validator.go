package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
)

var validate = validator.New()

// ValidateStruct runs the tag-declared rules on a request DTO and reports
// the first batch of failures as one BadRequest with a readable message.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.Wrap(apperr.Internal, "validating request", err)
	}

	messages := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", fieldName(fe)))
		case "e164":
			messages = append(messages, fmt.Sprintf("%s must be an E.164 phone number", fieldName(fe)))
		case "len":
			messages = append(messages, fmt.Sprintf("%s must be exactly %s characters", fieldName(fe), fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", fieldName(fe)))
		}
	}
	return apperr.New(apperr.BadRequest, strings.Join(messages, "; "))
}

func fieldName(fe validator.FieldError) string {
	return strings.ToLower(fe.Field())
}
