package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalid      = errors.New("invalid")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInputShape   = errors.New("unexpected field value type")
	ErrDecode       = errors.New("decode failed")
	ErrConstruction = errors.New("model construction failed")
	ErrInvocation   = errors.New("model invocation failed")
	ErrPoisoned     = errors.New("model handle poisoned")
	ErrUnsupported  = errors.New("unsupported")
)

// Error carries a human readable message, the taxonomy sentinel it belongs to,
// the record field involved (if any) and the underlying cause.
type Error struct {
	Kind  error
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func New(kind error, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

func NewField(kind error, field string, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Field: field, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// FieldOf returns the record field named by the first Error in err's chain.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

func IsInputShape(err error) bool {
	return errors.Is(err, ErrInputShape)
}

func IsDecode(err error) bool {
	return errors.Is(err, ErrDecode)
}

func IsConstruction(err error) bool {
	return errors.Is(err, ErrConstruction)
}

func IsInvocation(err error) bool {
	return errors.Is(err, ErrInvocation)
}

func IsPoisoned(err error) bool {
	return errors.Is(err, ErrPoisoned)
}
