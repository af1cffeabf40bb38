package validators

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"goride-payments/internal/utils"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Register custom validation functions
	validate.RegisterValidation("mpesa_phone", validateMpesaPhone)
	validate.RegisterValidation("whole_amount", validateWholeAmount)
}

// Common validation errors
var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidPhoneFormat = errors.New("invalid phone format")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrMalformedCallback  = errors.New("malformed callback payload")
)

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var messages []string
	for _, err := range v {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

// Map flattens the errors for utils.ValidationErrorResponse.
func (v ValidationErrors) Map() map[string]string {
	out := make(map[string]string, len(v))
	for _, err := range v {
		out[err.Field] = err.Message
	}
	return out
}

func (v ValidationErrors) HasTag(tag string) bool {
	for _, err := range v {
		if err.Tag == tag {
			return true
		}
	}
	return false
}

// ValidateStruct validates a struct and returns detailed errors
func ValidateStruct(s interface{}) ValidationErrors {
	var validationErrors ValidationErrors

	err := validate.Struct(s)
	if err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return ValidationErrors{{Field: "body", Tag: "invalid", Message: err.Error()}}
		}
		for _, err := range fieldErrors {
			validationErrors = append(validationErrors, ValidationError{
				Field:   err.Field(),
				Tag:     err.Tag(),
				Value:   fmt.Sprintf("%v", err.Value()),
				Message: getErrorMessage(err),
			})
		}
	}

	return validationErrors
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "mpesa_phone":
		return "Enter a Safaricom number in format 07XXXXXXXX or 2547XXXXXXXX"
	case "whole_amount":
		return "Enter a valid amount to pay"
	default:
		return fmt.Sprintf("Validation failed for %s", err.Field())
	}
}

func validateMpesaPhone(fl validator.FieldLevel) bool {
	phone := fl.Field().String()
	if phone == "" {
		return true // Let required tag handle empty values
	}
	_, ok := utils.NormalizeMpesaPhone(phone)
	return ok
}

func validateWholeAmount(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := utils.ParseWholeAmount(value)
	return err == nil
}

var htmlRegex = regexp.MustCompile(`<[^>]*>`)

func SanitizeInput(input string) string {
	// Remove HTML tags and trim whitespace
	return strings.TrimSpace(htmlRegex.ReplaceAllString(input, ""))
}
