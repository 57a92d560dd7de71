package registry

import "errors"

// Sentinels matched with errors.Is. Each typed error below reports itself as
// one of these so handlers can map failures to status codes in one place.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
)

// ValidationError is malformed or missing input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string        { return e.Message }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError is an unknown id or a missing backing file.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string        { return e.Message }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// UnauthorizedError is a missing, malformed or mismatched credential.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string        { return e.Message }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

// InternalError wraps an I/O or persistence failure. Message is safe to show
// to clients; Err is only logged.
type InternalError struct {
	Message string
	Err     error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *InternalError) Unwrap() error        { return e.Err }
func (e *InternalError) Is(target error) bool { return target == ErrInternal }

// PublicMessage returns the client-facing message for err.
func PublicMessage(err error) string {
	var (
		v *ValidationError
		n *NotFoundError
		u *UnauthorizedError
		i *InternalError
	)
	switch {
	case errors.As(err, &v):
		return v.Message
	case errors.As(err, &n):
		return n.Message
	case errors.As(err, &u):
		return u.Message
	case errors.As(err, &i):
		return i.Message
	}
	return "Internal server error"
}
