// Package apperr defines the error taxonomy shared by the service and
// transport layers. Services wrap these sentinels with the violated
// precondition; the HTTP layer maps them to status codes.
package apperr

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrBadRequest      = errors.New("bad request")
	ErrInternal        = errors.New("internal error")
)

func IsUnauthenticated(err error) bool { return errors.Is(err, ErrUnauthenticated) }
func IsNotFound(err error) bool        { return errors.Is(err, ErrNotFound) }
func IsForbidden(err error) bool       { return errors.Is(err, ErrForbidden) }
func IsConflict(err error) bool        { return errors.Is(err, ErrConflict) }
func IsBadRequest(err error) bool      { return errors.Is(err, ErrBadRequest) }
