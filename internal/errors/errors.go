package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindUnauthorized
	KindStorage
	KindExternal
)

var kindStatus = map[Kind]int{
	KindUnknown:      http.StatusInternalServerError,
	KindValidation:   http.StatusBadRequest,
	KindNotFound:     http.StatusNotFound,
	KindForbidden:    http.StatusForbidden,
	KindConflict:     http.StatusConflict,
	KindUnauthorized: http.StatusUnauthorized,
	KindStorage:      http.StatusInternalServerError,
	KindExternal:     http.StatusBadGateway,
}

var kindCodes = map[Kind]string{
	KindUnknown:      "INTERNAL_ERROR",
	KindValidation:   "VALIDATION_ERROR",
	KindNotFound:     "NOT_FOUND",
	KindForbidden:    "FORBIDDEN",
	KindConflict:     "CONFLICT",
	KindUnauthorized: "UNAUTHORIZED",
	KindStorage:      "STORAGE_FAILURE",
	KindExternal:     "UPSTREAM_ERROR",
}

// Causes attached by the repository to Conflict errors so callers can tell
// a uniqueness clash from a dangling reference.
var (
	ErrDuplicate        = stderrors.New("duplicate key")
	ErrMissingReference = stderrors.New("referenced row missing or still referenced")
)

// Error is a classified failure surfaced by repositories and services.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return kindCodes[e.Kind]
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, err error, msg string) error {
	return &Error{Kind: kind, Err: err, Msg: msg}
}

func Validation(format string, a ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, a...)}
}

func NotFound(format string, a ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, a...)}
}

func Forbidden(format string, a ...any) error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, a...)}
}

func Conflict(format string, a ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, a...)}
}

func Unauthorized(format string, a ...any) error {
	return &Error{Kind: KindUnauthorized, Msg: fmt.Sprintf(format, a...)}
}

func Storage(err error, msg string) error {
	return &Error{Kind: KindStorage, Err: err, Msg: msg}
}

func External(err error, msg string) error {
	return &Error{Kind: KindExternal, Err: err, Msg: msg}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsForbidden(err error) bool    { return KindOf(err) == KindForbidden }
func IsConflict(err error) bool     { return KindOf(err) == KindConflict }
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }
func IsStorage(err error) bool      { return KindOf(err) == KindStorage }

// HTTPStatus maps err to the status code the REST layer answers with.
func HTTPStatus(err error) int {
	return kindStatus[KindOf(err)]
}
