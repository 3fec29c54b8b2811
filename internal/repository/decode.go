package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DecodeError reports an API payload that decoded but does not have the
// shape the front-end relies on.
type DecodeError struct {
	Op     string
	Fields []string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: invalid response: %s", e.Op, strings.Join(e.Fields, ", "))
}

// IsDecodeError reports whether err wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// InvalidInputError is returned before any request is sent when the
// caller's input fails validation.
type InvalidInputError struct {
	Fields []string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + strings.Join(e.Fields, ", ")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func failedFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace()+" ("+fe.Tag()+")")
	}
	return fields
}

func checkResponse(op string, v any) error {
	if err := validate.Struct(v); err != nil {
		return &DecodeError{Op: op, Fields: failedFields(err)}
	}
	return nil
}

func checkInput(v any) error {
	if err := validate.Struct(v); err != nil {
		return &InvalidInputError{Fields: failedFields(err)}
	}
	return nil
}
