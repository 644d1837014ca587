package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrInvalid
	ErrInternal
	ErrInputShape
	ErrDecode
	ErrModelInit
	ErrModelInvoke
	ErrModelPoisoned
	ErrUnsupported
	ErrTooMany
)
