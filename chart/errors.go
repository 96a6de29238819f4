package contour

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidAxisBounds means a step would divide by zero or go negative
var ErrInvalidAxisBounds = errors.New("invalid axis bounds")

// ErrInvalidValue is returned at the input boundary for text that is not a number
var ErrInvalidValue = errors.New("invalid value")

var (
	ErrInvalidRadius = errors.New("invalid radius")
	ErrInvalidStroke = errors.New("invalid stroke width")
	ErrInvalidColor  = errors.New("invalid color")
)

// InputError names the parameter that failed validation
type InputError struct {
	Field string
	Value string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// NewInputError keeps NaN and Inf visible in the message
func NewInputError(field string, value any, err error) *InputError {
	var v string
	switch tv := value.(type) {
	case float64:
		v = strconv.FormatFloat(tv, 'f', -1, 64)
	case string:
		v = tv
	default:
		v = fmt.Sprint(tv)
	}
	return &InputError{Field: field, Value: v, Err: err}
}
