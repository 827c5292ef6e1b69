package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("password_complex", passwordComplex)
	return v
}

// passwordComplex requires at least 8 characters with an upper-case letter,
// a lower-case letter, a digit and a symbol.
func passwordComplex(fl validator.FieldLevel) bool {
	return IsComplexPassword(fl.Field().String())
}

func IsComplexPassword(value string) bool {
	if len([]rune(value)) < 8 {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, c := range value {
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsLower(c):
			lower = true
		case unicode.IsDigit(c):
			digit = true
		default:
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "password_complex":
		return "password must be at least 8 chars and contain upper, lower, digit and symbol"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// ValidateAndDecode decodes the JSON body into payload and runs struct
// validation. A non-nil result is a 400 ready to be sent.
func ValidateAndDecode(r *http.Request, payload interface{}) *AppError {
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		return NewAppError(http.StatusBadRequest, "Invalid request body", nil)
	}

	if err := validate.Struct(payload); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return NewAppError(http.StatusBadRequest, "Invalid request body", err)
		}
		appErr := NewAppError(http.StatusBadRequest, "Validation failed", nil)
		for _, fe := range validationErrors {
			appErr.Details = append(appErr.Details, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		return appErr
	}

	return nil
}
