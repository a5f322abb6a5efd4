package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "invalid request body"
	}

	var errMsgs []string
	for _, e := range validationErrors {
		field := e.Field()
		param := e.Param()

		switch e.Tag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("%s is required", field))
		case "min":
			errMsgs = append(errMsgs, fmt.Sprintf("%s must contain at least %s item(s)", field, param))
		case "max":
			errMsgs = append(errMsgs, fmt.Sprintf("%s must contain at most %s item(s)", field, param))
		case "oneof":
			errMsgs = append(errMsgs, fmt.Sprintf("%s must be one of [%s]", field, param))
		case "required_if":
			errMsgs = append(errMsgs, fmt.Sprintf("%s is required when %s", field, param))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("%s failed validation (%s)", field, e.Tag()))
		}
	}
	return strings.Join(errMsgs, "; ")
}
